package clipmap

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// Region is the voxel cube a clip level currently caches.
type Region struct {
	// MinCorner is the region's minimum voxel coordinate in level voxel units.
	MinCorner d3.Vec3i
	// Extent is the number of voxels per side.
	Extent int
	// VoxelSize is the world size of one voxel.
	VoxelSize float32
}

// Box returns the region as an integer box in level voxel coordinates.
func (r Region) Box() d3.Box {
	return d3.Cube(r.MinCorner, r.Extent)
}

// Bounds returns the world space bounds of the region.
func (r Region) Bounds() ms3.Box {
	lo := ms3.Scale(r.VoxelSize, r.MinCorner.Vec())
	return ms3.Box{Min: lo, Max: ms3.AddScalar(float32(r.Extent)*r.VoxelSize, lo)}
}

// Voxel returns the voxel containing world position p.
func (r Region) Voxel(p ms3.Vec) d3.Vec3i {
	return d3.FloorElem(ms3.Scale(1/r.VoxelSize, p))
}

// Contains returns true if the world position p lies inside the region.
func (r Region) Contains(p ms3.Vec) bool {
	return r.Box().Contains(r.Voxel(p))
}

// Update is the revoxelization work a clip level needs this frame.
// It is produced by [Tracker.Update] and discarded at the end of the frame.
type Update struct {
	Level int
	// Full is set when the whole level must be revoxelized. Boxes then
	// holds a single box spanning the entire region.
	Full bool
	// Boxes are disjoint slabs in level voxel coordinates.
	Boxes []d3.Box
	// Delta is the region shift applied by this update.
	Delta d3.Vec3i
}

// Empty returns true if no texel needs rewriting.
func (u Update) Empty() bool { return len(u.Boxes) == 0 }

// Volume returns the total number of voxels covered by the update.
func (u Update) Volume() (n int) {
	for _, b := range u.Boxes {
		n += b.Volume()
	}
	return n
}

// Tracker follows the camera for a single clip level and reports the minimal
// set of slabs that must be revoxelized to keep the region centered.
type Tracker struct {
	level     int
	minChange int
	region    Region
	valid     bool
}

// NewTracker returns a tracker for a level. The first call to Update is always a full update.
func NewTracker(cfg Config, level int) *Tracker {
	if level < 0 || level >= cfg.Levels {
		panic("clip level out of range")
	}
	return &Tracker{
		level:     level,
		minChange: cfg.ClipMinChange[level],
		region: Region{
			Extent:    cfg.Resolution,
			VoxelSize: cfg.VoxelSize(level),
		},
	}
}

// Level returns the tracked clip level.
func (t *Tracker) Level() int { return t.level }

// Region returns the current region.
func (t *Tracker) Region() Region { return t.region }

// Valid returns false until the first update placed the region.
func (t *Tracker) Valid() bool { return t.valid }

// Reset forces the next update to revoxelize the whole level.
func (t *Tracker) Reset() { t.valid = false }

// Update moves the region towards the camera box with minimum corner cameraMin.
// The region is only ever shifted by multiples of the level's minimum change, so
// motion below that granularity returns an empty update.
func (t *Tracker) Update(cameraMin ms3.Vec) Update {
	u := Update{Level: t.level}
	r := &t.region
	if !t.valid {
		// Snap onto the minimum change grid so that later deltas keep the alignment.
		step := r.VoxelSize * float32(t.minChange)
		r.MinCorner = d3.FloorElem(ms3.Scale(1/step, cameraMin)).ScaleMul(t.minChange)
		t.valid = true
		u.Full = true
		u.Boxes = []d3.Box{r.Box()}
		logs.WithTag("level", t.level).
			WithTag("min_corner", r.MinCorner).
			Debug("initial clip region")
		return u
	}
	u.Delta = t.delta(cameraMin)
	if u.Delta.IsZero() {
		return u
	}
	r.MinCorner = r.MinCorner.Add(u.Delta)
	for axis := 0; axis < 3; axis++ {
		if d3.Abs(u.Delta[axis]) >= r.Extent {
			u.Full = true
			u.Boxes = []d3.Box{r.Box()}
			logs.WithTag("level", t.level).
				WithTag("delta", u.Delta).
				Debug("clip region moved a full extent")
			return u
		}
	}
	u.Boxes = slabs(r.Box(), u.Delta, t.minChange)
	return u
}

// delta computes the quantized region shift towards cameraMin.
func (t *Tracker) delta(cameraMin ms3.Vec) (delta d3.Vec3i) {
	r := t.region
	step := r.VoxelSize * float32(t.minChange)
	diff := ms3.Sub(cameraMin, ms3.Scale(r.VoxelSize, r.MinCorner.Vec()))
	for axis := 0; axis < 3; axis++ {
		delta[axis] = int(math32.Trunc(d3.Comp(diff, axis)/step)) * t.minChange
	}
	return delta
}

// slabs returns up to three pairwise disjoint boxes covering the voxels of
// newBox that were not part of the region before it moved by delta.
// Each slab is |delta| voxels deep along its axis; later axes exclude the
// columns already taken by earlier axes.
func slabs(newBox d3.Box, delta d3.Vec3i, minChange int) []d3.Box {
	var boxes []d3.Box
	remaining := newBox
	for axis := 0; axis < 3; axis++ {
		d := delta[axis]
		if d3.Abs(d) < minChange {
			continue
		}
		slab := remaining
		if d > 0 {
			// Moved towards +axis: new voxels appear at the leading edge.
			slab.Min[axis] = newBox.Max[axis] - d
			remaining.Max[axis] = slab.Min[axis]
		} else {
			slab.Max[axis] = newBox.Min[axis] - d
			remaining.Min[axis] = slab.Max[axis]
		}
		if !slab.Empty() {
			boxes = append(boxes, slab)
		}
	}
	return boxes
}
