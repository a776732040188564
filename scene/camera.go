package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/glgl/math/ms3"
)

// Viewpoint is a perspective camera. It implements pipeline.Camera.
type Viewpoint struct {
	Position ms3.Vec
	Target   ms3.Vec
	// FovY is the vertical field of view in radians.
	FovY float32
}

// Origin returns the camera position.
func (v Viewpoint) Origin() ms3.Vec { return v.Position }

// Forward returns the unit view direction.
func (v Viewpoint) Forward() ms3.Vec { return ms3.Unit(ms3.Sub(v.Target, v.Position)) }

// ViewProj returns the camera view-projection for an image aspect ratio (width/height).
func (v Viewpoint) ViewProj(aspect float32) mgl32.Mat4 {
	up := ms3.Vec{Y: 1}
	if math32.Abs(v.Forward().Y) > 0.99 {
		up = ms3.Vec{Z: -1}
	}
	view := mgl32.LookAtV(vec3(v.Position), vec3(v.Target), vec3(up))
	fov := v.FovY
	if fov <= 0 {
		fov = mgl32.DegToRad(60)
	}
	dist := ms3.Norm(ms3.Sub(v.Target, v.Position))
	proj := mgl32.Perspective(fov, aspect, dist*1e-3, dist*100)
	return proj.Mul4(view)
}

// Path is a piecewise linear camera trajectory looking at a fixed target.
type Path struct {
	Points []ms3.Vec
	Target ms3.Vec
	FovY   float32
}

// At returns the viewpoint at frame of a fly-through lasting frames frames.
func (p Path) At(frame, frames int) Viewpoint {
	vp := Viewpoint{Target: p.Target, FovY: p.FovY}
	switch {
	case len(p.Points) == 0:
		return vp
	case len(p.Points) == 1 || frames <= 1:
		vp.Position = p.Points[0]
		return vp
	}
	t := float32(frame) / float32(frames-1) * float32(len(p.Points)-1)
	seg := int(t)
	if seg >= len(p.Points)-1 {
		vp.Position = p.Points[len(p.Points)-1]
		return vp
	}
	a, b := p.Points[seg], p.Points[seg+1]
	vp.Position = ms3.Add(a, ms3.Scale(t-float32(seg), ms3.Sub(b, a)))
	return vp
}

func vec3(v ms3.Vec) mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }
