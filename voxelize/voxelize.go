package voxelize

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/chewxy/math32"
	"github.com/fogleman/fauxgl"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/math/ms3"
)

// Batch is a group of triangles drawn with a single draw call.
type Batch struct {
	Triangles []ms3.Triangle
	// Albedo is the diffuse reflectance of the batch.
	Albedo ms3.Vec
}

// Scene issues one draw call per geometry batch.
type Scene interface {
	Draw(drawBatch func(b *Batch))
}

// Fragment is a rasterized sample of a scene triangle.
type Fragment struct {
	Position ms3.Vec
	Normal   ms3.Vec
	Albedo   ms3.Vec
	Voxel    d3.Vec3i
}

// FaceValues holds the value written into each face of a voxel.
type FaceValues [voxel.NumFaces][4]float32

// Shader decides what a fragment writes into its voxel. Values are
// max-combined with the texel contents. Returning false discards the fragment.
type Shader interface {
	Shade(f *Fragment, dst *FaceValues) bool
}

// OpacityShader marks the voxel opaque from every direction.
type OpacityShader struct{}

func (OpacityShader) Shade(f *Fragment, dst *FaceValues) bool {
	for i := range dst {
		dst[i] = [4]float32{1, 0, 0, 0}
	}
	return true
}

// Stats counts voxelization work.
type Stats struct {
	Triangles int
	Fragments int
	Writes    int
}

// Voxelizer rasterizes scene geometry into a clipmap volume through three
// orthographic projections, one per major axis.
type Voxelizer struct {
	cfg      clipmap.Config
	scene    Scene
	contexts map[[2]int]*fauxgl.Context
	levels   [clipmap.NumLevels]Projection
}

// New returns a voxelizer drawing scene. A nil scene is a setup error.
func New(cfg clipmap.Config, scene Scene) (*Voxelizer, error) {
	if scene == nil {
		return nil, errors.New("voxelizer needs a scene")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Voxelizer{
		cfg:      cfg,
		scene:    scene,
		contexts: make(map[[2]int]*fauxgl.Context),
	}, nil
}

// Projection returns the projections used to voxelize box at a level. The box
// is extended by the border width so triangles crossing its faces are rasterized.
func (vz *Voxelizer) Projection(level int, box d3.Box) Projection {
	return NewProjection(box.Grow(vz.cfg.Border), vz.cfg.VoxelSize(level))
}

// LevelProjection returns the projection of the last full region voxelized at a level.
// The radiance injector uses it to revoxelize lighting with the same parameters.
func (vz *Voxelizer) LevelProjection(level int) Projection {
	return vz.levels[level]
}

// Voxelize rasterizes the scene into the boxes of a level. Boxes must lie
// inside region. A nil shader writes opacity.
func (vz *Voxelizer) Voxelize(t *voxel.Texture, level int, region clipmap.Region, boxes []d3.Box, sh Shader) (Stats, error) {
	if sh == nil {
		sh = OpacityShader{}
	}
	var stats Stats
	rb := region.Box()
	for _, box := range boxes {
		if !rb.ContainsBox(box) {
			return stats, errors.New("voxelization box outside clip region").
				WithTag("level", level).
				WithTag("box", box).
				WithTag("region", rb)
		}
		if box.Empty() {
			continue
		}
		proj := vz.Projection(level, box)
		if box == rb {
			vz.levels[level] = proj
		}
		vz.rasterize(t, level, region.VoxelSize, box, proj, sh, &stats)
	}
	logs.WithTag("level", level).
		WithTag("texture", t.Name).
		WithTag("boxes", len(boxes)).
		WithTag("fragments", stats.Fragments).
		WithTag("writes", stats.Writes).
		Debug("voxelized")
	return stats, nil
}

const edgeOnTol = 1e-4

func (vz *Voxelizer) rasterize(t *voxel.Texture, level int, voxelSize float32, target d3.Box, proj Projection, sh Shader, stats *Stats) {
	fs := &fragmentShader{
		tex:       t,
		level:     level,
		voxelSize: voxelSize,
		target:    target,
		shader:    sh,
		stats:     stats,
	}
	var tris []*fauxgl.Triangle
	var normals, albedos []ms3.Vec
	vz.scene.Draw(func(b *Batch) {
		for _, tri := range b.Triangles {
			if tri.IsDegenerate(1e-12) {
				continue
			}
			tris = append(tris, FauxTriangle(tri))
			normals = append(normals, ms3.Unit(tri.Normal()))
			albedos = append(albedos, b.Albedo)
		}
	})
	stats.Triangles += len(tris)
	for axis := 0; axis < 3; axis++ {
		ctx := vz.context(proj.Viewport[axis])
		fs.matrix = FauxMatrix(proj.ViewProj[axis])
		ctx.Shader = fs
		for i, tri := range tris {
			if math32.Abs(d3.Comp(normals[i], axis)) < edgeOnTol {
				continue // Zero area when seen along axis.
			}
			fs.albedo = albedos[i]
			ctx.DrawTriangle(tri)
		}
	}
}

// context returns a depth and color write disabled rasterization context of the given size.
func (vz *Voxelizer) context(viewport [2]int) *fauxgl.Context {
	ctx, ok := vz.contexts[viewport]
	if !ok {
		ctx = fauxgl.NewContext(viewport[0], viewport[1])
		ctx.Cull = fauxgl.CullNone
		ctx.ReadDepth = false
		ctx.WriteDepth = false
		ctx.WriteColor = false
		vz.contexts[viewport] = ctx
	}
	return ctx
}

// FauxTriangle converts tri to a fauxgl triangle with its face normal on every vertex.
func FauxTriangle(tri ms3.Triangle) *fauxgl.Triangle {
	n := ms3.Unit(tri.Normal())
	normal := fauxgl.V(float64(n.X), float64(n.Y), float64(n.Z))
	vert := func(p ms3.Vec) fauxgl.Vertex {
		return fauxgl.Vertex{
			Position: fauxgl.V(float64(p.X), float64(p.Y), float64(p.Z)),
			Normal:   normal,
		}
	}
	return &fauxgl.Triangle{V1: vert(tri[0]), V2: vert(tri[1]), V3: vert(tri[2])}
}

// fragmentShader adapts a Shader to fauxgl. Fragments never reach the color buffer,
// they are written into the volume instead.
type fragmentShader struct {
	matrix    fauxgl.Matrix
	tex       *voxel.Texture
	level     int
	voxelSize float32
	target    d3.Box
	albedo    ms3.Vec
	shader    Shader
	stats     *Stats
	values    FaceValues
}

func (fs *fragmentShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = fs.matrix.MulPositionW(v.Position)
	return v
}

func (fs *fragmentShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	fs.stats.Fragments++
	pos := ms3.Vec{X: float32(v.Position.X), Y: float32(v.Position.Y), Z: float32(v.Position.Z)}
	frag := Fragment{
		Position: pos,
		Normal:   ms3.Unit(ms3.Vec{X: float32(v.Normal.X), Y: float32(v.Normal.Y), Z: float32(v.Normal.Z)}),
		Albedo:   fs.albedo,
		Voxel:    d3.FloorElem(ms3.Scale(1/fs.voxelSize, pos)),
	}
	if !fs.target.Contains(frag.Voxel) {
		return fauxgl.Discard
	}
	fs.values = FaceValues{}
	if !fs.shader.Shade(&frag, &fs.values) {
		return fauxgl.Discard
	}
	fs.stats.Writes++
	for f := voxel.Face(0); f < voxel.NumFaces; f++ {
		for ch := 0; ch < fs.tex.Channels; ch++ {
			fs.tex.Max(fs.level, f, frag.Voxel, ch, fs.values[f][ch])
		}
	}
	return fauxgl.Discard
}
