// Package scene provides the geometry, cameras and light passes that feed
// the clipmap pipeline.
package scene

import (
	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
)

// Mesh is a list of batches drawn in order. It implements voxelize.Scene.
type Mesh struct {
	Batches []voxelize.Batch
}

var _ voxelize.Scene = (*Mesh)(nil)

// Draw calls drawBatch once per batch.
func (m *Mesh) Draw(drawBatch func(b *voxelize.Batch)) {
	for i := range m.Batches {
		drawBatch(&m.Batches[i])
	}
}

// Add appends batches to the mesh.
func (m *Mesh) Add(batches ...voxelize.Batch) {
	m.Batches = append(m.Batches, batches...)
}

// Triangles returns the number of triangles in the mesh.
func (m *Mesh) Triangles() (n int) {
	for i := range m.Batches {
		n += len(m.Batches[i].Triangles)
	}
	return n
}

// Bounds returns the bounding box of every vertex in the mesh. An empty mesh
// has a zero box.
func (m *Mesh) Bounds() ms3.Box {
	bb := ms3.Box{
		Min: ms3.Vec{X: math32.MaxFloat32, Y: math32.MaxFloat32, Z: math32.MaxFloat32},
		Max: ms3.Vec{X: -math32.MaxFloat32, Y: -math32.MaxFloat32, Z: -math32.MaxFloat32},
	}
	if m.Triangles() == 0 {
		return ms3.Box{}
	}
	for i := range m.Batches {
		for _, tri := range m.Batches[i].Triangles {
			for _, vert := range tri {
				bb.Min = ms3.MinElem(bb.Min, vert)
				bb.Max = ms3.MaxElem(bb.Max, vert)
			}
		}
	}
	return bb
}

// NewQuad returns the two triangle rectangle center±u±v. Its normal points
// along u×v.
func NewQuad(center, u, v, albedo ms3.Vec) voxelize.Batch {
	return voxelize.Batch{Triangles: quad(center, u, v), Albedo: albedo}
}

func quad(c, u, v ms3.Vec) []ms3.Triangle {
	p00 := ms3.Sub(ms3.Sub(c, u), v)
	p10 := ms3.Sub(ms3.Add(c, u), v)
	p11 := ms3.Add(ms3.Add(c, u), v)
	p01 := ms3.Add(ms3.Sub(c, u), v)
	return []ms3.Triangle{{p00, p10, p11}, {p00, p11, p01}}
}

// NewBox returns the twelve triangles of box with outward normals.
func NewBox(box ms3.Box, albedo ms3.Vec) voxelize.Batch {
	c := box.Center()
	h := ms3.Scale(0.5, box.Size())
	x, y, z := ms3.Vec{X: h.X}, ms3.Vec{Y: h.Y}, ms3.Vec{Z: h.Z}
	var tris []ms3.Triangle
	for _, face := range [6][3]ms3.Vec{
		{x, y, z},
		{ms3.Scale(-1, x), z, y},
		{y, z, x},
		{ms3.Scale(-1, y), x, z},
		{z, x, y},
		{ms3.Scale(-1, z), y, x},
	} {
		tris = append(tris, quad(ms3.Add(c, face[0]), face[1], face[2])...)
	}
	return voxelize.Batch{Triangles: tris, Albedo: albedo}
}

// Cornell box albedos.
var (
	White = ms3.Vec{X: 0.73, Y: 0.73, Z: 0.73}
	Red   = ms3.Vec{X: 0.65, Y: 0.05, Z: 0.05}
	Green = ms3.Vec{X: 0.12, Y: 0.45, Z: 0.15}
)

// CornellBox returns a room of the given size centered on the origin, open
// towards +Z, with a red -X wall, a green +X wall and two white blocks.
func CornellBox(size float32) *Mesh {
	h := size / 2
	x, y, z := ms3.Vec{X: h}, ms3.Vec{Y: h}, ms3.Vec{Z: h}
	neg := func(v ms3.Vec) ms3.Vec { return ms3.Scale(-1, v) }
	m := &Mesh{}
	m.Add(
		NewQuad(neg(y), z, x, White), // Floor.
		NewQuad(y, x, z, White),      // Ceiling.
		NewQuad(neg(z), x, y, White), // Back.
		NewQuad(neg(x), y, z, Red),
		NewQuad(x, z, y, Green),
	)
	s := size
	m.Add(
		NewBox(ms3.Box{
			Min: ms3.Vec{X: -0.35 * s, Y: -h, Z: -0.35 * s},
			Max: ms3.Vec{X: -0.05 * s, Y: 0.1 * s, Z: -0.05 * s},
		}, White),
		NewBox(ms3.Box{
			Min: ms3.Vec{X: 0.05 * s, Y: -h, Z: 0.0},
			Max: ms3.Vec{X: 0.35 * s, Y: -0.2 * s, Z: 0.3 * s},
		}, White),
	)
	return m
}
