package pipeline

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/clipgi/inject"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
)

// Camera is the viewpoint the clipmap follows.
type Camera interface {
	Origin() ms3.Vec
}

// LevelBoxer is implemented by cameras that place the box each clip level
// must cover themselves. Other cameras get a box centered on their origin.
type LevelBoxer interface {
	LevelBox(level int) ms3.Box
}

// View is a camera image shaded by the cone tracing stage.
type View struct {
	GBuffer *conetrace.GBuffer
	// Output receives one color per GBuffer pixel.
	Output []ms3.Vec
}

// StageRun identifies a recorded command in a [FrameReport].
type StageRun struct {
	Kind  Kind
	Level int
	// Resource is the resource the command writes, or the last one it reads.
	Resource Resource
}

// FrameReport describes the work done by [Driver.Frame].
type FrameReport struct {
	Frame   uint64
	Skipped bool
	Due     []int
	Updates [clipmap.NumLevels]clipmap.Update
	Regions [clipmap.NumLevels]clipmap.Region
	// Runs lists the executed commands in order.
	Runs     []StageRun
	Barriers []Barrier
	Elapsed  time.Duration
}

// Ran returns true if a command of kind ran for level.
func (r FrameReport) Ran(kind Kind, level int) bool {
	for _, run := range r.Runs {
		if run.Kind == kind && run.Level == level {
			return true
		}
	}
	return false
}

// RanOn returns true if a command of kind ran for level on res.
func (r FrameReport) RanOn(kind Kind, res Resource, level int) bool {
	for _, run := range r.Runs {
		if run.Kind == kind && run.Resource == res && run.Level == level {
			return true
		}
	}
	return false
}

func target(uses []Use) (res Resource) {
	for _, u := range uses {
		res = u.Resource
		if u.Access&Write != 0 {
			break
		}
	}
	return res
}

// trackerSet holds one region tracker per level and serves their regions to the cone tracer.
type trackerSet struct {
	trackers []*clipmap.Tracker
}

func newTrackerSet(cfg clipmap.Config) *trackerSet {
	ts := &trackerSet{}
	for lvl := 0; lvl < cfg.Levels; lvl++ {
		ts.trackers = append(ts.trackers, clipmap.NewTracker(cfg, lvl))
	}
	return ts
}

// Region returns the current region of a level or a zero region if the
// level was never placed.
func (ts *trackerSet) Region(level int) clipmap.Region {
	t := ts.trackers[level]
	if !t.Valid() {
		return clipmap.Region{}
	}
	return t.Region()
}

func (ts *trackerSet) reset() {
	for _, t := range ts.trackers {
		t.Reset()
	}
}

// core is the set of collaborators shared by the stages.
type core struct {
	cfg      clipmap.Config
	cadence  clipmap.Cadence
	kernels  voxel.Kernels
	cache    *voxel.Cache
	vz       *voxelize.Voxelizer
	injector *inject.Injector
	tracer   *conetrace.Tracer
	trackers *trackerSet
	view     *View
	camera   Camera
}

func (c *core) texture(res Resource) *voxel.Texture {
	if res == Radiance {
		return c.cache.Radiance
	}
	return c.cache.Opacity
}

func (c *core) cameraMin(f *Frame, level int) ms3.Vec {
	if lb, ok := c.camera.(LevelBoxer); ok {
		return lb.LevelBox(level).Min
	}
	return c.cfg.CameraBox(f.Origin, level).Min
}

// Driver runs the per frame clipmap update. It owns the frame counter that
// drives the level cadence.
type Driver struct {
	core   core
	stages []Stage
	frame  uint64
	rec    Recorder
	due    []int
}

// Frame runs the GI update of one frame for camera. If ctx is done before
// the frame's commands are recorded the update is skipped: no region moves
// and the frame counter does not advance. Once recorded the commands run to
// completion. A failed command leaves the cache in an unknown state so every
// level is revoxelized on the next frame.
func (d *Driver) Frame(ctx context.Context, camera Camera) (FrameReport, error) {
	report := FrameReport{Frame: d.frame}
	if err := ctx.Err(); err != nil {
		instrumentSkippedFrame()
		logs.Warn(errors.New("gi update skipped").WithTag("frame", d.frame).Wrap(err))
		report.Skipped = true
		return report, nil
	}
	start := time.Now()
	d.core.camera = camera
	d.rec.Reset()
	f := &Frame{
		Index:  d.frame,
		Origin: camera.Origin(),
		Due:    d.core.cadence.DueLevels(d.due[:0], d.frame),
		Rec:    &d.rec,
	}
	d.due = f.Due
	for _, st := range d.stages {
		st.Begin(f)
		if err := st.Update(f); err != nil {
			d.core.trackers.reset()
			return report, errors.New("recording stage failed").WithTag("stage", st.Name()).Wrap(err)
		}
	}
	if err := d.rec.Submit(ctx, fencer(d.core.kernels)); err != nil {
		d.core.trackers.reset()
		instrumentFrameError()
		return report, err
	}
	for _, st := range d.stages {
		st.End(f)
	}
	report.Due = append(report.Due, f.Due...)
	report.Updates = f.Updates
	report.Regions = f.Regions
	for _, cmd := range d.rec.Commands() {
		report.Runs = append(report.Runs, StageRun{Kind: cmd.Kind, Level: cmd.Level, Resource: target(cmd.Uses)})
	}
	report.Barriers = d.rec.Barriers()
	report.Elapsed = time.Since(start)
	instrumentFrame(report.Elapsed)
	logs.WithTag("frame", d.frame).
		WithTag("due", f.Due).
		WithTag("commands", len(report.Runs)).
		WithTag("barriers", len(report.Barriers)).
		WithTag("elapsed", report.Elapsed).
		Debug("frame done")
	d.frame++
	return report, nil
}

func fencer(k voxel.Kernels) Fencer {
	f, _ := k.(Fencer)
	return f
}

// FrameIndex returns the index of the next frame.
func (d *Driver) FrameIndex() uint64 { return d.frame }

// Region returns the current region of a level. It is zero until the level
// was first placed.
func (d *Driver) Region(level int) clipmap.Region { return d.core.trackers.Region(level) }

// Regions returns the current region of every level.
func (d *Driver) Regions() []clipmap.Region {
	regions := make([]clipmap.Region, d.core.cfg.Levels)
	for lvl := range regions {
		regions[lvl] = d.Region(lvl)
	}
	return regions
}

// Config returns the clipmap configuration.
func (d *Driver) Config() clipmap.Config { return d.core.cfg }

// Cache returns the voxel cache updated by the driver.
func (d *Driver) Cache() *voxel.Cache { return d.core.cache }

// Tracer returns the cone tracer reading the cache.
func (d *Driver) Tracer() *conetrace.Tracer { return d.core.tracer }

// Injector returns the radiance injector.
func (d *Driver) Injector() *inject.Injector { return d.core.injector }

// Voxelizer returns the scene voxelizer.
func (d *Driver) Voxelizer() *voxelize.Voxelizer { return d.core.vz }

// Stages returns the stage names in frame order.
func (d *Driver) Stages() []string {
	names := make([]string, len(d.stages))
	for i, st := range d.stages {
		names[i] = st.Name()
	}
	return names
}

// SetView attaches a camera image to be shaded at the end of every frame.
// A nil view disables shading.
func (d *Driver) SetView(v *View) error {
	if v != nil {
		if v.GBuffer == nil {
			return errors.New("view without gbuffer")
		}
		if len(v.Output) < v.GBuffer.Width*v.GBuffer.Height {
			return errors.New("view output shorter than gbuffer").
				WithTag("output", len(v.Output)).
				WithTag("pixels", v.GBuffer.Width*v.GBuffer.Height)
		}
	}
	d.core.view = v
	return nil
}

// Invalidate forces every level to be fully revoxelized on its next update,
// for example after the scene changed.
func (d *Driver) Invalidate() { d.core.trackers.reset() }
