package pipeline

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/glgl/math/ms3"
)

// Kind identifies a pipeline stage.
type Kind uint8

const (
	KindRegions Kind = iota
	KindClear
	KindVoxelize
	KindDownsample
	KindBorder
	KindAlpha
	KindInject
	KindConeTrace
	numKinds
)

var kindNames = [numKinds]string{
	KindRegions:    "regions",
	KindClear:      "clear",
	KindVoxelize:   "voxelize",
	KindDownsample: "downsample",
	KindBorder:     "border",
	KindAlpha:      "alpha",
	KindInject:     "inject",
	KindConeTrace:  "conetrace",
}

func (k Kind) String() string {
	if k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Frame is the state shared by the stages of a single frame.
type Frame struct {
	Index uint64
	// Origin is the camera position this frame.
	Origin ms3.Vec
	// Due lists the clip levels whose cadence holds, in increasing order.
	Due     []int
	Updates [clipmap.NumLevels]clipmap.Update
	Regions [clipmap.NumLevels]clipmap.Region
	Rec     *Recorder
	// written marks the levels of each volume written this frame.
	written [numResources][clipmap.NumLevels]bool
}

// Written reports whether the frame writes the level of a volume.
func (f *Frame) Written(res Resource, level int) bool { return f.written[res][level] }

// moved returns true if the level's region produced revoxelization work.
func (f *Frame) moved(level int) bool { return !f.Updates[level].Empty() }

// Stage is one step of the frame. Stages are called in a fixed order: Begin
// picks the levels to act on, Update records commands and End runs after
// the frame's commands completed.
type Stage interface {
	Name() string
	Begin(f *Frame)
	Update(f *Frame) error
	End(f *Frame)
}

// levelStage holds the bookkeeping common to every stage variant.
type levelStage struct {
	core   *core
	kind   Kind
	res    Resource
	levels []int
}

func (s *levelStage) Name() string {
	if s.kind == KindRegions || s.kind == KindConeTrace || s.kind == KindInject || s.kind == KindAlpha {
		return s.kind.String()
	}
	return s.kind.String() + "/" + s.res.String()
}

func (s *levelStage) End(f *Frame) {
	for _, lvl := range s.levels {
		instrumentStageRun(s.Name(), lvl)
	}
	if len(s.levels) > 0 {
		logs.WithTag("frame", f.Index).
			WithTag("stage", s.Name()).
			WithTag("levels", s.levels).
			Debug("stage done")
	}
}

// regionStage moves the clip region of every due level towards the camera.
type regionStage struct{ levelStage }

func (s *regionStage) Begin(f *Frame) { s.levels = append(s.levels[:0], f.Due...) }

func (s *regionStage) Update(f *Frame) error {
	for _, lvl := range s.levels {
		t := s.core.trackers.trackers[lvl]
		f.Updates[lvl] = t.Update(s.core.cameraMin(f, lvl))
	}
	for lvl, t := range s.core.trackers.trackers {
		f.Regions[lvl] = t.Region()
	}
	return nil
}

// clearStage zeros the revoxelized opacity slabs.
type clearStage struct{ levelStage }

func (s *clearStage) Begin(f *Frame) {
	s.levels = s.levels[:0]
	for _, lvl := range f.Due {
		if f.moved(lvl) {
			s.levels = append(s.levels, lvl)
		}
	}
}

func (s *clearStage) Update(f *Frame) error {
	c := s.core
	for _, lvl := range s.levels {
		boxes := f.Updates[lvl].Boxes
		f.Rec.Record(KindClear, lvl, func() error {
			return c.kernels.Clear(c.cache.Opacity, lvl, boxes)
		}, Use{Opacity, Write})
	}
	return nil
}

// voxelizeStage rasterizes scene opacity into the cleared slabs, finest level first.
type voxelizeStage struct{ levelStage }

func (s *voxelizeStage) Begin(f *Frame) {
	s.levels = s.levels[:0]
	for _, lvl := range f.Due {
		if f.moved(lvl) {
			s.levels = append(s.levels, lvl)
		}
	}
}

func (s *voxelizeStage) Update(f *Frame) error {
	c := s.core
	for _, lvl := range s.levels {
		region, u := f.Regions[lvl], f.Updates[lvl]
		f.Rec.Record(KindVoxelize, lvl, func() error {
			_, err := c.vz.Voxelize(c.cache.Opacity, lvl, region, u.Boxes, nil)
			if err == nil {
				instrumentRevoxelized(lvl, u.Volume())
			}
			return err
		}, Use{Opacity, Write})
		f.written[Opacity][lvl] = true
	}
	return nil
}

// downsampleStage rebuilds coarse levels from the level below. It never runs
// for level 0. Opacity is rebuilt for a level whose finer neighbour moved this
// frame, radiance for a level whose finer neighbour was reinjected.
type downsampleStage struct{ levelStage }

func (s *downsampleStage) Begin(f *Frame) {
	s.levels = s.levels[:0]
	for _, lvl := range f.Due {
		if lvl == 0 {
			continue
		}
		if s.res == Radiance && f.written[Radiance][lvl-1] || s.res == Opacity && f.moved(lvl-1) {
			s.levels = append(s.levels, lvl)
		}
	}
}

func (s *downsampleStage) Update(f *Frame) error {
	c := s.core
	tex := c.texture(s.res)
	for _, lvl := range s.levels {
		fine, coarse := f.Regions[lvl-1], f.Regions[lvl]
		f.Rec.Record(KindDownsample, lvl, func() error {
			if s.res == Radiance {
				_, err := c.injector.Downsample(c.cache, lvl, fine, coarse)
				return err
			}
			_, err := c.kernels.Downsample(tex, lvl, fine, coarse, c.cfg.DownsampleFilter, c.cfg.DownsampleBlock)
			return err
		}, Use{s.res, ReadWrite})
		f.written[s.res][lvl] = true
	}
	return nil
}

// borderStage refreshes the border band of every level written this frame.
type borderStage struct{ levelStage }

func (s *borderStage) Begin(f *Frame) {
	s.levels = s.levels[:0]
	for _, lvl := range f.Due {
		if f.written[s.res][lvl] {
			s.levels = append(s.levels, lvl)
		}
	}
}

func (s *borderStage) Update(f *Frame) error {
	c := s.core
	tex := c.texture(s.res)
	for _, lvl := range s.levels {
		f.Rec.Record(KindBorder, lvl, func() error {
			return c.kernels.WrapBorder(tex, lvl)
		}, Use{s.res, ReadWrite})
	}
	return nil
}

// injectStage rebuilds the radiance of every due level: the whole region is
// cleared and the lit scene revoxelized.
type injectStage struct{ levelStage }

func (s *injectStage) Begin(f *Frame) { s.levels = append(s.levels[:0], f.Due...) }

func (s *injectStage) Update(f *Frame) error {
	c := s.core
	for _, lvl := range s.levels {
		region := f.Regions[lvl]
		f.Rec.Record(KindClear, lvl, func() error {
			return c.injector.Clear(c.cache, lvl, region)
		}, Use{Radiance, Write})
	}
	for _, lvl := range s.levels {
		region := f.Regions[lvl]
		f.Rec.Record(KindInject, lvl, func() error {
			_, err := c.injector.Voxelize(c.cache, lvl, region)
			return err
		}, Use{Radiance, Write})
		f.written[Radiance][lvl] = true
	}
	return nil
}

// alphaStage copies finalized opacity into the alpha channel of injected radiance.
type alphaStage struct{ levelStage }

func (s *alphaStage) Begin(f *Frame) {
	s.levels = s.levels[:0]
	for _, lvl := range f.Due {
		if f.written[Radiance][lvl] {
			s.levels = append(s.levels, lvl)
		}
	}
}

func (s *alphaStage) Update(f *Frame) error {
	c := s.core
	for _, lvl := range s.levels {
		f.Rec.Record(KindAlpha, lvl, func() error {
			return c.injector.CopyAlpha(c.cache, lvl)
		}, Use{Opacity, Read}, Use{Radiance, ReadWrite})
	}
	return nil
}

// coneTraceStage shades the attached view, if any, from the finished cache.
type coneTraceStage struct{ levelStage }

func (s *coneTraceStage) Begin(f *Frame) {}

func (s *coneTraceStage) Update(f *Frame) error {
	c := s.core
	v := c.view
	if v == nil {
		return nil
	}
	eye := f.Origin
	f.Rec.Record(KindConeTrace, -1, func() error {
		return c.tracer.Shade(v.GBuffer, eye, v.Output)
	}, Use{Opacity, Read}, Use{Radiance, Read})
	return nil
}

// newStages returns the closed set of stage variants in frame order.
func newStages(c *core) []Stage {
	ls := func(kind Kind, res Resource) levelStage { return levelStage{core: c, kind: kind, res: res} }
	return []Stage{
		&regionStage{ls(KindRegions, Opacity)},
		&clearStage{ls(KindClear, Opacity)},
		&voxelizeStage{ls(KindVoxelize, Opacity)},
		&downsampleStage{ls(KindDownsample, Opacity)},
		&borderStage{ls(KindBorder, Opacity)},
		&injectStage{ls(KindInject, Radiance)},
		&alphaStage{ls(KindAlpha, Radiance)},
		&downsampleStage{ls(KindDownsample, Radiance)},
		&borderStage{ls(KindBorder, Radiance)},
		&coneTraceStage{ls(KindConeTrace, Radiance)},
	}
}
