package inject

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
)

// ShadowMap is a light space depth texture produced by an external shadow pass.
// Row 0 is at the top of the light's view (NDC y = +1). Depths are NDC z
// remapped to [0, 1] with 0 at the near plane.
type ShadowMap struct {
	Width, Height int
	Depth         []float32
	// Bias is added to stored depths before comparing.
	Bias float32
}

// NewShadowMap returns a shadow map cleared to the far plane.
func NewShadowMap(width, height int) *ShadowMap {
	sm := &ShadowMap{Width: width, Height: height, Depth: make([]float32, width*height), Bias: 2e-3}
	sm.Clear()
	return sm
}

// Clear resets every texel to the far plane.
func (sm *ShadowMap) Clear() {
	for i := range sm.Depth {
		sm.Depth[i] = 1
	}
}

// Texel returns the texel index of a light space NDC position and its depth.
func (sm *ShadowMap) Texel(ndc ms3.Vec) (idx int, depth float32, ok bool) {
	x := int(math32.Floor((ndc.X + 1) / 2 * float32(sm.Width)))
	y := int(math32.Floor((1 - ndc.Y) / 2 * float32(sm.Height)))
	if x < 0 || y < 0 || x >= sm.Width || y >= sm.Height {
		return 0, 0, false
	}
	return y*sm.Width + x, ndc.Z*0.5 + 0.5, true
}

// Visible returns 1 if ndc is lit and 0 if it is in shadow. Positions outside
// the map are lit.
func (sm *ShadowMap) Visible(ndc ms3.Vec) float32 {
	idx, depth, ok := sm.Texel(ndc)
	if !ok || depth <= sm.Depth[idx]+sm.Bias {
		return 1
	}
	return 0
}

// DirectionalLight is a light infinitely far away.
type DirectionalLight struct {
	// Direction the light travels in. Unit length.
	Direction ms3.Vec
	Color     ms3.Vec
	Intensity float32
	// ViewProj is the orthographic light view-projection covering the scene.
	ViewProj mgl32.Mat4
	// Shadow is the depth texture rendered with ViewProj. Nil disables shadowing.
	Shadow *ShadowMap
}

// NewDirectionalLight returns a light whose orthographic view covers bounds.
func NewDirectionalLight(dir, color ms3.Vec, intensity float32, bounds ms3.Box) *DirectionalLight {
	dir = ms3.Unit(dir)
	center := bounds.Center()
	radius := ms3.Norm(bounds.Size()) / 2
	eye := ms3.Sub(center, ms3.Scale(radius, dir))
	up := ms3.Vec{Y: 1}
	if math32.Abs(dir.Y) > 0.99 {
		up = ms3.Vec{Z: 1}
	}
	view := mgl32.LookAtV(
		mgl32.Vec3{eye.X, eye.Y, eye.Z},
		mgl32.Vec3{center.X, center.Y, center.Z},
		mgl32.Vec3{up.X, up.Y, up.Z},
	)
	proj := mgl32.Ortho(-radius, radius, -radius, radius, 0, 2*radius)
	return &DirectionalLight{
		Direction: dir,
		Color:     color,
		Intensity: intensity,
		ViewProj:  proj.Mul4(view),
	}
}

// NDC returns the light space normalized device coordinates of a world position.
func (l *DirectionalLight) NDC(pos ms3.Vec) ms3.Vec {
	return voxelize.ClipSpace(l.ViewProj, pos)
}

// Irradiance returns the direct light reaching a surface with normal n at pos.
func (l *DirectionalLight) Irradiance(pos, n ms3.Vec) ms3.Vec {
	ndotl := math32.Max(0, -ms3.Dot(n, l.Direction))
	if ndotl == 0 {
		return ms3.Vec{}
	}
	vis := float32(1)
	if l.Shadow != nil {
		vis = l.Shadow.Visible(l.NDC(pos))
	}
	return ms3.Scale(l.Intensity*ndotl*vis, l.Color)
}
