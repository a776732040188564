package voxelize

import (
	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// Projection holds the three orthographic projections used to voxelize a box.
// Index i projects along axis i so that triangles facing that axis rasterize densely.
type Projection struct {
	// Box is the projected box in level voxel coordinates, border included.
	Box d3.Box
	// Bounds is Box in world space.
	Bounds ms3.Box
	// ViewProj maps world positions to clip space for each projection axis.
	ViewProj [3]mgl32.Mat4
	// Viewport is the width and height in pixels of each projection. One pixel per voxel.
	Viewport [3][2]int
}

// screenAxes returns the world axes mapped to screen x and y when looking along axis.
func screenAxes(axis int) (u, w int) {
	return (axis + 1) % 3, (axis + 2) % 3
}

// NewProjection builds the projections of box (level voxel coordinates) at the given voxel size.
func NewProjection(box d3.Box, voxelSize float32) Projection {
	p := Projection{
		Box: box,
		Bounds: ms3.Box{
			Min: ms3.Scale(voxelSize, box.Min.Vec()),
			Max: ms3.Scale(voxelSize, box.Max.Vec()),
		},
	}
	lo, hi := p.Bounds.Min, p.Bounds.Max
	size := box.Size()
	for axis := 0; axis < 3; axis++ {
		u, w := screenAxes(axis)
		// View space: x=world[u], y=world[w], looking down -z along +world[axis].
		view := mgl32.Mat4{}
		view.Set(0, u, 1)
		view.Set(1, w, 1)
		view.Set(2, axis, -1)
		view.Set(3, 3, 1)
		ortho := mgl32.Ortho(
			d3.Comp(lo, u), d3.Comp(hi, u),
			d3.Comp(lo, w), d3.Comp(hi, w),
			d3.Comp(lo, axis), d3.Comp(hi, axis),
		)
		p.ViewProj[axis] = ortho.Mul4(view)
		p.Viewport[axis] = [2]int{size[u], size[w]}
	}
	return p
}

// FauxMatrix converts a column major mgl32 matrix into fauxgl's row major matrix.
func FauxMatrix(m mgl32.Mat4) fauxgl.Matrix {
	at := func(r, c int) float64 { return float64(m.At(r, c)) }
	return fauxgl.Matrix{
		at(0, 0), at(0, 1), at(0, 2), at(0, 3),
		at(1, 0), at(1, 1), at(1, 2), at(1, 3),
		at(2, 0), at(2, 1), at(2, 2), at(2, 3),
		at(3, 0), at(3, 1), at(3, 2), at(3, 3),
	}
}

// ClipSpace transforms a world position with a view-projection matrix and
// returns normalized device coordinates.
func ClipSpace(viewProj mgl32.Mat4, pos ms3.Vec) ms3.Vec {
	v := viewProj.Mul4x1(mgl32.Vec4{pos.X, pos.Y, pos.Z, 1})
	return ms3.Vec{X: v[0] / v[3], Y: v[1] / v[3], Z: v[2] / v[3]}
}
