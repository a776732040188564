package inject

import (
	"testing"

	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
	"github.com/stretchr/testify/require"
)

type floorScene struct {
	albedo ms3.Vec
}

// Draw emits an upward facing floor at y=2.5 covering x,z in [0,8].
func (s floorScene) Draw(drawBatch func(b *voxelize.Batch)) {
	p := func(x, z float32) ms3.Vec { return ms3.Vec{X: x, Y: 2.5, Z: z} }
	drawBatch(&voxelize.Batch{
		Triangles: []ms3.Triangle{
			{p(0, 0), p(0, 8), p(8, 8)},
			{p(0, 0), p(8, 8), p(8, 0)},
		},
		Albedo: s.albedo,
	})
}

var sceneBounds = ms3.Box{Max: ms3.Vec{X: 8, Y: 8, Z: 8}}

func testConfig() clipmap.Config {
	cfg := clipmap.DefaultConfig()
	cfg.Resolution = 8
	cfg.BaseExtent = 8
	cfg.ClipMinChange = [clipmap.NumLevels]int{2, 2, 2, 2, 2, 2}
	return cfg
}

func newInjector(t *testing.T, light *DirectionalLight) (*Injector, *voxel.Cache, clipmap.Region) {
	t.Helper()
	cfg := testConfig()
	vz, err := voxelize.New(cfg, floorScene{albedo: ms3.Vec{X: 0.5, Y: 0.25, Z: 1}})
	require.NoError(t, err)
	in, err := New(cfg, vz, light, voxel.CPUKernels{})
	require.NoError(t, err)
	c, err := voxel.NewCache(cfg)
	require.NoError(t, err)
	region := clipmap.Region{Extent: cfg.Resolution, VoxelSize: cfg.VoxelSize(0)}
	_, err = vz.Voxelize(c.Opacity, 0, region, []d3.Box{region.Box()}, nil)
	require.NoError(t, err)
	return in, c, region
}

func TestNewValidates(t *testing.T) {
	cfg := testConfig()
	vz, err := voxelize.New(cfg, floorScene{})
	require.NoError(t, err)
	light := NewDirectionalLight(ms3.Vec{Y: -1}, ms3.Vec{X: 1, Y: 1, Z: 1}, 1, sceneBounds)
	_, err = New(cfg, nil, light, voxel.CPUKernels{})
	require.Error(t, err)
	_, err = New(cfg, vz, nil, voxel.CPUKernels{})
	require.Error(t, err)
	_, err = New(cfg, vz, light, nil)
	require.Error(t, err)
}

func TestShadowMapTexel(t *testing.T) {
	sm := NewShadowMap(4, 2)
	idx, depth, ok := sm.Texel(ms3.Vec{X: -0.99, Y: 0.99, Z: -1})
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.Equal(t, float32(0), depth)

	idx, depth, ok = sm.Texel(ms3.Vec{X: 0.99, Y: -0.99, Z: 1})
	require.True(t, ok)
	require.Equal(t, 7, idx)
	require.Equal(t, float32(1), depth)

	_, _, ok = sm.Texel(ms3.Vec{X: 1.5})
	require.False(t, ok)
}

func TestShadowMapVisible(t *testing.T) {
	sm := NewShadowMap(2, 2)
	for i := range sm.Depth {
		sm.Depth[i] = 0.5
	}
	require.Equal(t, float32(1), sm.Visible(ms3.Vec{Z: -0.2})) // depth 0.4
	require.Equal(t, float32(0), sm.Visible(ms3.Vec{Z: 0.4}))  // depth 0.7
	require.Equal(t, float32(1), sm.Visible(ms3.Vec{X: 3, Z: 0.4}))
	sm.Clear()
	require.Equal(t, float32(1), sm.Visible(ms3.Vec{Z: 0.9}))
}

func TestDirectionalLight(t *testing.T) {
	light := NewDirectionalLight(ms3.Vec{Y: -2}, ms3.Vec{X: 1, Y: 0.5, Z: 0.25}, 2, sceneBounds)
	require.Equal(t, ms3.Vec{Y: -1}, light.Direction)

	ndc := light.NDC(sceneBounds.Center())
	require.InDelta(t, 0, ndc.X, 1e-5)
	require.InDelta(t, 0, ndc.Y, 1e-5)
	require.InDelta(t, 0, ndc.Z, 1e-5)

	up := ms3.Vec{Y: 1}
	require.Equal(t, ms3.Vec{X: 2, Y: 1, Z: 0.5}, light.Irradiance(ms3.Vec{}, up))
	require.Equal(t, ms3.Vec{}, light.Irradiance(ms3.Vec{}, ms3.Vec{Y: -1}))
	require.Equal(t, ms3.Vec{}, light.Irradiance(ms3.Vec{}, ms3.Vec{X: 1}))
}

func TestInjectLitFloor(t *testing.T) {
	light := NewDirectionalLight(ms3.Vec{Y: -1}, ms3.Vec{X: 1, Y: 1, Z: 1}, 2, sceneBounds)
	in, c, region := newInjector(t, light)

	stats, err := in.InjectLevel(c, 0, region)
	require.NoError(t, err)
	require.Positive(t, stats.Writes)

	v := d3.Vec3i{3, 2, 5}
	up := c.Radiance.Texel(0, voxel.FacePosY, c.Radiance.Storage(v))
	require.InDeltaSlice(t, []float32{1, 0.5, 2, 1}, up, 1e-5)
	down := c.Radiance.Texel(0, voxel.FaceNegY, c.Radiance.Storage(v))
	require.InDeltaSlice(t, []float32{0, 0, 0, 1}, down, 1e-5)
	require.Zero(t, c.Radiance.At(0, voxel.FacePosY, d3.Vec3i{3, 4, 5}, 0))
}

func TestInjectShadowedFloor(t *testing.T) {
	light := NewDirectionalLight(ms3.Vec{Y: -1}, ms3.Vec{X: 1, Y: 1, Z: 1}, 1, sceneBounds)
	light.Shadow = NewShadowMap(16, 16)
	for i := range light.Shadow.Depth {
		light.Shadow.Depth[i] = 0
	}
	in, c, region := newInjector(t, light)

	stats, err := in.InjectLevel(c, 0, region)
	require.NoError(t, err)
	require.Zero(t, stats.Writes)
	texel := c.Radiance.Texel(0, voxel.FacePosY, c.Radiance.Storage(d3.Vec3i{3, 2, 5}))
	require.Equal(t, []float32{0, 0, 0, 1}, texel)
}

func TestInjectClearsStaleRadiance(t *testing.T) {
	light := NewDirectionalLight(ms3.Vec{Y: -1}, ms3.Vec{X: 1, Y: 1, Z: 1}, 1, sceneBounds)
	in, c, region := newInjector(t, light)
	stale := d3.Vec3i{1, 6, 1}
	c.Radiance.Set(0, voxel.FacePosX, stale, 0, 5)

	_, err := in.InjectLevel(c, 0, region)
	require.NoError(t, err)
	require.Zero(t, c.Radiance.At(0, voxel.FacePosX, stale, 0))
}
