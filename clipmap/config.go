package clipmap

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// NumLevels is the fixed number of clip levels.
const NumLevels = 6

// Filter selects how a coarse clip level cell is built from its
// eight finer children during downsampling.
type Filter uint8

const (
	// FilterAnisotropic composites the two children along each face direction
	// front to back and averages the four resulting pairs.
	FilterAnisotropic Filter = iota
	// FilterAverage is the plain mean of the eight children.
	FilterAverage
	// FilterMax keeps the largest child value.
	FilterMax
)

func (f Filter) String() string {
	switch f {
	case FilterAnisotropic:
		return "anisotropic"
	case FilterAverage:
		return "average"
	case FilterMax:
		return "max"
	}
	return "unknown filter"
}

// ParseFilter returns the filter named s.
func ParseFilter(s string) (Filter, error) {
	for f := FilterAnisotropic; f <= FilterMax; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, errors.New("unknown downsample filter").WithTag("filter", s)
}

func (f Filter) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Filter) UnmarshalText(b []byte) (err error) {
	*f, err = ParseFilter(string(b))
	return err
}

// Config is the immutable clipmap configuration.
type Config struct {
	// Levels must be NumLevels.
	Levels int
	// Resolution is the voxel count of each level's cube side. Identical for all levels.
	Resolution int
	// BaseExtent is the world size of level 0's cube side.
	BaseExtent float32
	// Border is the width in texels of the band surrounding each level's core cube.
	Border int
	// ClipMinChange is the per-level minimum region shift in voxels. Powers of two.
	ClipMinChange [NumLevels]int
	// DownsampleFilter selects the coarse cell weighting.
	DownsampleFilter Filter
	// DownsampleBlock is the edge size in coarse cells of a downsample dispatch tile.
	DownsampleBlock int
}

// DefaultConfig returns a 6 level clipmap of 64^3 voxels per level.
func DefaultConfig() Config {
	return Config{
		Levels:           NumLevels,
		Resolution:       64,
		BaseExtent:       16,
		Border:           1,
		ClipMinChange:    [NumLevels]int{4, 4, 4, 4, 4, 4},
		DownsampleFilter: FilterAnisotropic,
		DownsampleBlock:  8,
	}
}

// Validate checks the configuration for setup errors.
func (cfg Config) Validate() error {
	switch {
	case cfg.Levels != NumLevels:
		return errors.New("clipmap level count must be fixed").WithTag("levels", cfg.Levels)
	case cfg.Resolution < 8 || !d3.IsPow2(cfg.Resolution):
		return errors.New("clipmap resolution must be a power of two >= 8").WithTag("resolution", cfg.Resolution)
	case cfg.BaseExtent <= 0:
		return errors.New("clipmap base extent must be positive").WithTag("base_extent", cfg.BaseExtent)
	case cfg.Border < 1 || cfg.Border >= cfg.Resolution/2:
		return errors.New("invalid clipmap border width").WithTag("border", cfg.Border)
	case cfg.DownsampleBlock < 1:
		return errors.New("invalid downsample block size").WithTag("downsample_block", cfg.DownsampleBlock)
	case cfg.DownsampleFilter > FilterMax:
		return errors.New("unknown downsample filter").WithTag("filter", int(cfg.DownsampleFilter))
	}
	for lvl, mc := range cfg.ClipMinChange {
		if !d3.IsPow2(mc) || mc >= cfg.Resolution {
			return errors.New("clip minimum change must be a power of two smaller than resolution").
				WithTag("level", lvl).
				WithTag("clip_min_change", mc)
		}
	}
	return nil
}

// VoxelSize returns the world size of a voxel at the given level.
func (cfg Config) VoxelSize(level int) float32 {
	return cfg.BaseExtent * float32(int(1)<<level) / float32(cfg.Resolution)
}

// Padded returns the side of a level block including the border on both sides.
func (cfg Config) Padded() int {
	return cfg.Resolution + 2*cfg.Border
}

// CameraBox returns the camera centered box the level's region must contain.
func (cfg Config) CameraBox(origin ms3.Vec, level int) ms3.Box {
	half := float32(cfg.Resolution/2) * cfg.VoxelSize(level)
	return ms3.Box{
		Min: ms3.AddScalar(-half, origin),
		Max: ms3.AddScalar(half, origin),
	}
}
