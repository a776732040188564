package pipeline

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/clipgi/inject"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/clipgi/voxelize"
)

// Builder assembles a [Driver] step by step:
//
//	NewBuilder(cfg).Cache().Voxelizer(scene).Injector(light).ConeTracer(params).Build()
//
// Each step requires the previous ones. The first failing step is kept and
// returned by Build, later steps do nothing.
type Builder struct {
	c   core
	err error
}

// NewBuilder starts a pipeline using the CPU kernels.
func NewBuilder(cfg clipmap.Config) *Builder {
	b := &Builder{c: core{cfg: cfg, kernels: voxel.CPUKernels{}}}
	if err := cfg.Validate(); err != nil {
		b.err = errors.New("invalid clipmap configuration").Wrap(err)
	}
	return b
}

// prerequisite is a step that must have happened before another.
type prerequisite struct {
	name string
	ok   bool
}

func (b *Builder) require(step string, prereqs ...prerequisite) bool {
	if b.err != nil {
		return false
	}
	for _, p := range prereqs {
		if !p.ok {
			b.err = errors.New("pipeline step out of order").
				WithTag("step", step).
				WithTag("requires", p.name)
			return false
		}
	}
	return true
}

// Kernels replaces the volume kernels. It must be called before Injector.
func (b *Builder) Kernels(k voxel.Kernels) *Builder {
	if !b.require("kernels", prerequisite{"no injector yet", b.c.injector == nil}) {
		return b
	}
	if k == nil {
		b.err = errors.New("nil volume kernels")
		return b
	}
	b.c.kernels = k
	return b
}

// Cache allocates the opacity and radiance volumes and the region trackers.
func (b *Builder) Cache() *Builder {
	if !b.require("cache") {
		return b
	}
	cache, err := voxel.NewCache(b.c.cfg)
	if err != nil {
		b.err = errors.New("creating voxel cache").Wrap(err)
		return b
	}
	b.c.cache = cache
	b.c.cadence = clipmap.Cadence{Levels: b.c.cfg.Levels}
	b.c.trackers = newTrackerSet(b.c.cfg)
	return b
}

// Voxelizer sets the scene rasterized into the cache.
func (b *Builder) Voxelizer(scene voxelize.Scene) *Builder {
	if !b.require("voxelizer", prerequisite{"cache", b.c.cache != nil}) {
		return b
	}
	vz, err := voxelize.New(b.c.cfg, scene)
	if err != nil {
		b.err = errors.New("creating voxelizer").Wrap(err)
		return b
	}
	b.c.vz = vz
	return b
}

// Injector sets the light whose direct lighting is injected into the radiance volume.
func (b *Builder) Injector(light *inject.DirectionalLight) *Builder {
	if !b.require("injector", prerequisite{"voxelizer", b.c.vz != nil}) {
		return b
	}
	in, err := inject.New(b.c.cfg, b.c.vz, light, b.c.kernels)
	if err != nil {
		b.err = errors.New("creating radiance injector").Wrap(err)
		return b
	}
	b.c.injector = in
	return b
}

// ConeTracer sets the tunables of the tracer reading the finished cache.
func (b *Builder) ConeTracer(params conetrace.Params) *Builder {
	if !b.require("cone tracer", prerequisite{"injector", b.c.injector != nil}) {
		return b
	}
	tr, err := conetrace.New(b.c.cfg, b.c.cache, b.c.trackers, params)
	if err != nil {
		b.err = errors.New("creating cone tracer").Wrap(err)
		return b
	}
	b.c.tracer = tr
	return b
}

// Build returns the driver or the first error met while building.
func (b *Builder) Build() (*Driver, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.require("build", prerequisite{"cone tracer", b.c.tracer != nil}) {
		return nil, b.err
	}
	d := &Driver{core: b.c}
	d.stages = newStages(&d.core)
	return d, nil
}
