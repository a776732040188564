package scene

import (
	"github.com/chewxy/math32"
	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/clipgi/inject"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
)

// RenderShadowMap rasterizes the mesh depth as seen from the light into a
// size by size shadow map and attaches it to the light.
func RenderShadowMap(m *Mesh, light *inject.DirectionalLight, size int) *inject.ShadowMap {
	sm := inject.NewShadowMap(size, size)
	ctx := fauxgl.NewContext(size, size)
	ctx.Cull = fauxgl.CullNone
	ctx.ReadDepth = false
	ctx.WriteDepth = false
	ctx.WriteColor = false
	ctx.Shader = &depthShader{
		matrix: voxelize.FauxMatrix(light.ViewProj),
		light:  light,
		sm:     sm,
	}
	drawMesh(ctx, m, nil)
	light.Shadow = sm
	return sm
}

// depthShader keeps the nearest light space depth of every texel.
type depthShader struct {
	matrix fauxgl.Matrix
	light  *inject.DirectionalLight
	sm     *inject.ShadowMap
}

func (s *depthShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *depthShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	idx, depth, ok := s.sm.Texel(s.light.NDC(position(v)))
	if ok && depth < s.sm.Depth[idx] {
		s.sm.Depth[idx] = depth
	}
	return fauxgl.Discard
}

// RenderGBuffer rasterizes the surface attributes of the mesh seen from view
// into a width by height GBuffer. Direct lighting is evaluated with light.
func RenderGBuffer(m *Mesh, view Viewpoint, light *inject.DirectionalLight, width, height int) *conetrace.GBuffer {
	g := conetrace.NewGBuffer(width, height)
	viewProj := view.ViewProj(float32(width) / float32(height))
	ctx := fauxgl.NewContext(width, height)
	ctx.Cull = fauxgl.CullNone
	ctx.ClearDepthBuffer()
	ctx.WriteColor = false
	gs := &gbufferShader{
		matrix:   voxelize.FauxMatrix(viewProj),
		viewProj: viewProj,
		light:    light,
		g:        g,
	}
	ctx.Shader = gs
	drawMesh(ctx, m, func(b *voxelize.Batch) { gs.albedo = b.Albedo })
	return g
}

// gbufferShader writes fragments that pass the depth test into the GBuffer.
// Nearer fragments drawn later overwrite farther ones.
type gbufferShader struct {
	matrix   fauxgl.Matrix
	viewProj mgl32.Mat4
	light    *inject.DirectionalLight
	albedo   ms3.Vec
	g        *conetrace.GBuffer
}

func (s *gbufferShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *gbufferShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	pos := position(v)
	if badVec(pos) {
		return fauxgl.Discard // Edge-on triangle.
	}
	ndc := voxelize.ClipSpace(s.viewProj, pos)
	x := int(math32.Floor((ndc.X + 1) / 2 * float32(s.g.Width)))
	y := int(math32.Floor((1 - ndc.Y) / 2 * float32(s.g.Height)))
	if x < 0 || y < 0 || x >= s.g.Width || y >= s.g.Height {
		return fauxgl.Discard
	}
	i := y*s.g.Width + x
	n := ms3.Unit(ms3.Vec{X: float32(v.Normal.X), Y: float32(v.Normal.Y), Z: float32(v.Normal.Z)})
	s.g.Position[i] = pos
	s.g.Normal[i] = n
	s.g.Albedo[i] = s.albedo
	s.g.Direct[i] = ms3.MulElem(s.albedo, s.light.Irradiance(pos, n))
	return fauxgl.White
}

// drawMesh draws every triangle of m, calling begin before each batch.
func drawMesh(ctx *fauxgl.Context, m *Mesh, begin func(b *voxelize.Batch)) {
	m.Draw(func(b *voxelize.Batch) {
		if begin != nil {
			begin(b)
		}
		for _, tri := range b.Triangles {
			if tri.IsDegenerate(0) {
				continue
			}
			ctx.DrawTriangle(voxelize.FauxTriangle(tri))
		}
	})
}

func position(v fauxgl.Vertex) ms3.Vec {
	return ms3.Vec{X: float32(v.Position.X), Y: float32(v.Position.Y), Z: float32(v.Position.Z)}
}
