package inject

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
)

// Injector revoxelizes direct lighting into the radiance volume. Callers
// decide which levels are due.
type Injector struct {
	cfg     clipmap.Config
	vz      *voxelize.Voxelizer
	kernels voxel.Kernels
	light   *DirectionalLight
}

// New returns an injector lighting scene geometry drawn by vz.
func New(cfg clipmap.Config, vz *voxelize.Voxelizer, light *DirectionalLight, kernels voxel.Kernels) (*Injector, error) {
	switch {
	case vz == nil:
		return nil, errors.New("radiance injector needs a voxelizer")
	case light == nil:
		return nil, errors.New("radiance injector needs a directional light")
	case kernels == nil:
		return nil, errors.New("radiance injector needs volume kernels")
	}
	return &Injector{
		cfg:     cfg,
		vz:      vz,
		kernels: kernels,
		light:   light,
	}, nil
}

// Light returns the light being injected.
func (in *Injector) Light() *DirectionalLight { return in.light }

// Clear zeros the radiance of the whole level region.
func (in *Injector) Clear(c *voxel.Cache, level int, region clipmap.Region) error {
	return in.kernels.Clear(c.Radiance, level, []d3.Box{region.Box()})
}

// Voxelize rasterizes the lit scene into the radiance volume of a level.
func (in *Injector) Voxelize(c *voxel.Cache, level int, region clipmap.Region) (voxelize.Stats, error) {
	sh := &lightShader{light: in.light, offset: region.VoxelSize / 2}
	return in.vz.Voxelize(c.Radiance, level, region, []d3.Box{region.Box()}, sh)
}

// CopyAlpha writes the level's opacity into the radiance alpha channel.
func (in *Injector) CopyAlpha(c *voxel.Cache, level int) error {
	return in.kernels.CopyAlpha(c.Opacity, c.Radiance, level)
}

// Downsample rebuilds the radiance of a level > 0 from the level below.
func (in *Injector) Downsample(c *voxel.Cache, level int, fine, coarse clipmap.Region) (d3.Box, error) {
	return in.kernels.Downsample(c.Radiance, level, fine, coarse, in.cfg.DownsampleFilter, in.cfg.DownsampleBlock)
}

// InjectLevel runs clear, lit voxelization and alpha copy for one level.
func (in *Injector) InjectLevel(c *voxel.Cache, level int, region clipmap.Region) (voxelize.Stats, error) {
	if err := in.Clear(c, level, region); err != nil {
		return voxelize.Stats{}, err
	}
	stats, err := in.Voxelize(c, level, region)
	if err != nil {
		return stats, err
	}
	return stats, in.CopyAlpha(c, level)
}

// lightShader writes the reflected direct light of a fragment into the faces
// its normal points towards.
type lightShader struct {
	light *DirectionalLight
	// offset moves the shadow lookup off the surface to avoid self shadowing.
	offset float32
}

func (s *lightShader) Shade(f *voxelize.Fragment, dst *voxelize.FaceValues) bool {
	pos := ms3.Add(f.Position, ms3.Scale(s.offset, f.Normal))
	irr := s.light.Irradiance(pos, f.Normal)
	lit := ms3.MulElem(irr, f.Albedo)
	if lit == (ms3.Vec{}) {
		return false
	}
	for face := voxel.Face(0); face < voxel.NumFaces; face++ {
		w := math32.Max(0, ms3.Dot(f.Normal, face.Dir()))
		dst[face] = [4]float32{w * lit.X, w * lit.Y, w * lit.Z, 0}
	}
	return true
}
