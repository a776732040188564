package conetrace

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/math/ms3"
)

// alphaSaturated stops a cone once the accumulated opacity reaches it.
const alphaSaturated = 0.99

// RegionSource reports the region each clip level currently caches.
// A zero Extent marks a level that holds no data yet.
type RegionSource interface {
	Region(level int) clipmap.Region
}

// Cone is the result of marching a single cone.
type Cone struct {
	// Radiance is the front to back accumulated premultiplied radiance.
	Radiance  ms3.Vec
	Alpha     float32
	Occlusion float32
	// Distance is how far the cone marched before stopping.
	Distance float32
}

// Sample is one step of a marched cone, recorded for debugging.
type Sample struct {
	Distance  float32
	Diameter  float32
	Level     int
	Alpha     float32
	Occlusion float32
}

// Result is the indirect lighting gathered at a surface point.
type Result struct {
	Diffuse   ms3.Vec
	Specular  ms3.Vec
	Occlusion float32
}

// Tracer cone traces the voxel cache to compute indirect lighting.
type Tracer struct {
	cfg     clipmap.Config
	cache   *voxel.Cache
	regions RegionSource
	params  Params
	cones16 coneSet
	cones32 coneSet
}

// New returns a tracer reading cache whose level placement is given by regions.
func New(cfg clipmap.Config, cache *voxel.Cache, regions RegionSource, params Params) (*Tracer, error) {
	switch {
	case cache == nil:
		return nil, errors.New("cone tracer needs a voxel cache")
	case regions == nil:
		return nil, errors.New("cone tracer needs a region source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tr := &Tracer{
		cfg:     cfg,
		cache:   cache,
		regions: regions,
		cones16: newConeSet(16),
		cones32: newConeSet(32),
	}
	if err := tr.SetParams(params); err != nil {
		return nil, err
	}
	return tr, nil
}

// Params returns the tracer's current tunables.
func (tr *Tracer) Params() Params { return tr.params }

// SetParams replaces the tunables. Invalid parameters are rejected and the
// previous ones kept.
func (tr *Tracer) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return errors.New("invalid cone tracing parameters").Wrap(err)
	}
	tr.params = p
	logs.WithTag("cones", p.ConeCount()).
		WithTag("display", p.DisplayMode).
		Debug("cone tracing parameters set")
	return nil
}

// MaxDistance returns the distance cones stop at.
func (tr *Tracer) MaxDistance() float32 {
	if tr.params.MaxTraceDistance > 0 {
		return tr.params.MaxTraceDistance
	}
	coarsest := tr.cfg.Levels - 1
	return tr.cfg.VoxelSize(coarsest) * float32(tr.cfg.Resolution) / 2
}

// Trace marches a cone from origin along unit dir with the given half angle
// aperture until it saturates, leaves the cached volume or exceeds maxDist.
// When profile is not nil every step is appended to it.
func (tr *Tracer) Trace(origin, dir ms3.Vec, aperture, maxDist float32, profile *[]Sample) Cone {
	vs0 := tr.cfg.VoxelSize(0)
	diamPerDist := 2 * math32.Tan(aperture)
	var c Cone
	dist := float32(0)
	for dist < maxDist && c.Alpha < alphaSaturated {
		diameter := math32.Max(vs0, diamPerDist*dist)
		pos := ms3.Add(origin, ms3.Scale(dist, dir))
		rad, occ, level, ok := tr.sampleLOD(pos, dir, math32.Log2(diameter/vs0))
		if !ok {
			break
		}
		w := 1 - c.Alpha
		c.Radiance = ms3.Add(c.Radiance, ms3.Scale(w, ms3.Vec{X: rad[0], Y: rad[1], Z: rad[2]}))
		c.Occlusion += w * occ / (1 + tr.params.OcclusionDecay*dist)
		c.Alpha += w * math32.Min(1, rad[3])
		if profile != nil {
			*profile = append(*profile, Sample{
				Distance:  dist,
				Diameter:  diameter,
				Level:     level,
				Alpha:     c.Alpha,
				Occlusion: c.Occlusion,
			})
		}
		dist += diameter * tr.params.MinTraceStepFactor
	}
	c.Distance = dist
	return c
}

// sampleLOD samples radiance and opacity at a fractional level of detail. The
// level is raised to the finest level whose region holds pos. ok is false
// once pos is outside every region.
func (tr *Tracer) sampleLOD(pos, dir ms3.Vec, lod float32) (rad [4]float32, occ float32, level int, ok bool) {
	finest := tr.finestLevel(pos)
	if finest < 0 {
		return rad, 0, -1, false
	}
	lod = math32.Max(lod, 0)
	level = int(lod)
	frac := lod - float32(level)
	if level < finest {
		level, frac = finest, 0
	}
	last := tr.cfg.Levels - 1
	if level >= last {
		level, frac = last, 0
	}
	rad, occ = tr.sampleLevel(level, pos, dir)
	if frac > 0 && tr.inside(level+1, pos) {
		rad1, occ1 := tr.sampleLevel(level+1, pos, dir)
		for i := range rad {
			rad[i] += frac * (rad1[i] - rad[i])
		}
		occ += frac * (occ1 - occ)
	}
	return rad, occ, level, true
}

func (tr *Tracer) sampleLevel(level int, pos, dir ms3.Vec) (rad [4]float32, occ float32) {
	r := tr.regions.Region(level)
	rad = tr.cache.Radiance.Sample(level, r, pos, dir)
	occ = tr.cache.Opacity.Sample(level, r, pos, dir)[0]
	return rad, occ
}

func (tr *Tracer) finestLevel(pos ms3.Vec) int {
	for level := 0; level < tr.cfg.Levels; level++ {
		if tr.inside(level, pos) {
			return level
		}
	}
	return -1
}

// inside returns true if all trilinear neighbours of pos lie in the level's region.
func (tr *Tracer) inside(level int, pos ms3.Vec) bool {
	r := tr.regions.Region(level)
	if r.Extent == 0 {
		return false
	}
	g := d3.FloorElem(ms3.AddScalar(-0.5, ms3.Scale(1/r.VoxelSize, pos)))
	box := r.Box()
	return box.Contains(g) && box.Contains(g.AddScalar(1))
}

// Gather traces the diffuse cone set around normal and one specular cone
// along the reflection of view, the direction from the eye to pos.
// A zero view skips the specular cone.
func (tr *Tracer) Gather(pos, normal, view ms3.Vec) Result {
	n := ms3.Unit(normal)
	origin := ms3.Add(pos, ms3.Scale(tr.params.TraceStartOffset*tr.cfg.VoxelSize(0), n))
	maxDist := tr.MaxDistance()
	cones := tr.coneSet()
	rot := rotateToVec(ms3.Vec{Z: 1}, n)
	weight := 1 / float32(len(cones.dirs))

	var res Result
	for _, d := range cones.dirs {
		c := tr.Trace(origin, rot.apply(d), cones.aperture, maxDist, nil)
		res.Diffuse = ms3.Add(res.Diffuse, ms3.Scale(weight, c.Radiance))
		res.Occlusion += weight * c.Occlusion
	}
	res.Diffuse = ms3.Scale(tr.params.IndirectDiffuseIntensity, res.Diffuse)
	res.Occlusion = voxel.Clamp01(res.Occlusion * tr.params.AmbientOcclusionFactor)

	if view != (ms3.Vec{}) && tr.params.IndirectSpecularIntensity > 0 {
		r := reflect(ms3.Unit(view), n)
		c := tr.Trace(origin, r, tr.params.SpecularAperture, maxDist, nil)
		res.Specular = ms3.Scale(tr.params.IndirectSpecularIntensity, c.Radiance)
	}
	return res
}

func (tr *Tracer) coneSet() *coneSet {
	if tr.params.Enable32Cones {
		return &tr.cones32
	}
	return &tr.cones16
}

// Compose combines direct lighting and a gathered result into the color shown
// for display mode.
func Compose(mode DisplayMode, direct, albedo ms3.Vec, r Result) ms3.Vec {
	diffuse := ms3.MulElem(albedo, r.Diffuse)
	switch mode {
	case DisplayDirect:
		return direct
	case DisplayIndirectDiffuse:
		return diffuse
	case DisplayIndirectSpecular:
		return r.Specular
	case DisplayAmbientOcclusion:
		ao := 1 - r.Occlusion
		return ms3.Vec{X: ao, Y: ao, Z: ao}
	}
	indirect := ms3.Add(ms3.Scale(1-r.Occlusion, diffuse), r.Specular)
	return ms3.Add(direct, indirect)
}

// GBuffer holds per pixel surface attributes of the camera view. Pixels with
// a zero normal are background.
type GBuffer struct {
	Width, Height int
	Position      []ms3.Vec
	Normal        []ms3.Vec
	Albedo        []ms3.Vec
	// Direct is the direct lighting of each pixel.
	Direct []ms3.Vec
}

// NewGBuffer allocates a cleared GBuffer.
func NewGBuffer(width, height int) *GBuffer {
	n := width * height
	return &GBuffer{
		Width:    width,
		Height:   height,
		Position: make([]ms3.Vec, n),
		Normal:   make([]ms3.Vec, n),
		Albedo:   make([]ms3.Vec, n),
		Direct:   make([]ms3.Vec, n),
	}
}

// Shade writes the composed color of every GBuffer pixel into dst as seen from eye.
func (tr *Tracer) Shade(g *GBuffer, eye ms3.Vec, dst []ms3.Vec) error {
	n := g.Width * g.Height
	if len(dst) < n {
		return errors.Newf("shade destination too short: %d < %d", len(dst), n)
	}
	if len(g.Position) < n || len(g.Normal) < n || len(g.Albedo) < n || len(g.Direct) < n {
		return errors.New("incomplete gbuffer").WithTag("pixels", n)
	}
	mode := tr.params.DisplayMode
	for i := 0; i < n; i++ {
		if g.Normal[i] == (ms3.Vec{}) {
			dst[i] = ms3.Vec{}
			continue
		}
		var res Result
		if mode != DisplayDirect {
			res = tr.Gather(g.Position[i], g.Normal[i], ms3.Sub(g.Position[i], eye))
		}
		dst[i] = Compose(mode, g.Direct[i], g.Albedo[i], res)
	}
	return nil
}
