package debugview

import (
	"bytes"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/math/ms3"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/cmpimg"
	"gonum.org/v1/plot/vg"
)

func testConfig() clipmap.Config {
	cfg := clipmap.DefaultConfig()
	cfg.Resolution = 8
	cfg.BaseExtent = 8
	cfg.Border = 1
	cfg.ClipMinChange = [clipmap.NumLevels]int{2, 2, 2, 2, 2, 2}
	return cfg
}

type centered struct{ cfg clipmap.Config }

func (c centered) Region(level int) clipmap.Region {
	return clipmap.Region{MinCorner: d3.Vec3i{-4, -4, -4}, Extent: 8, VoxelSize: c.cfg.VoxelSize(level)}
}

func TestSliceImage(t *testing.T) {
	cfg := testConfig()
	cache, err := voxel.NewCache(cfg)
	require.NoError(t, err)
	cache.Opacity.Texel(2, voxel.FacePosY, d3.Vec3i{3, 4, 5})[0] = 1
	copy(cache.Radiance.Texel(2, voxel.FacePosY, d3.Vec3i{3, 4, 5}), []float32{1, 0.5, 0, 1})

	s := Slice{Level: 2, Face: voxel.FacePosY, Axis: 1, Index: 4}
	img := SliceImage(cache.Opacity, s)
	require.Equal(t, 10, img.Bounds().Dx())
	// Column is z, rows run down from the top x.
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.At(5, 6))
	require.Equal(t, color.RGBA{A: 255}, img.At(6, 6))

	img = SliceImage(cache.Radiance, s)
	require.Equal(t, color.RGBA{R: 255, G: 128, A: 255}, img.At(5, 6))

	s.Scale = 3
	img = SliceImage(cache.Opacity, s)
	require.Equal(t, 30, img.Bounds().Dx())
	require.Equal(t, 30, img.Bounds().Dy())
}

func TestPlotProfile(t *testing.T) {
	_, err := PlotProfile("empty", nil)
	require.Error(t, err)

	samples := []conetrace.Sample{
		{Distance: 0.5, Diameter: 1, Level: 0, Alpha: 0.1, Occlusion: 0.1},
		{Distance: 1, Diameter: 1, Level: 0, Alpha: 0.3, Occlusion: 0.25},
		{Distance: 2, Diameter: 2, Level: 1, Alpha: 0.6, Occlusion: 0.4},
		{Distance: 4, Diameter: 4, Level: 2, Alpha: 0.99, Occlusion: 0.5},
	}
	render := func() []byte {
		p, err := PlotProfile("profile", samples)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, WritePNG(&buf, p, 4*vg.Inch, 3*vg.Inch))
		return buf.Bytes()
	}
	a, b := render(), render()
	equal, err := cmpimg.Equal("png", a, b)
	require.NoError(t, err)
	require.True(t, equal)

	samples[3].Alpha = 0.2
	equal, err = cmpimg.Equal("png", a, render())
	require.NoError(t, err)
	require.False(t, equal)
}

func TestHooks(t *testing.T) {
	h := NewHooks()
	require.Equal(t, []string{HookConeProfile, HookOpacitySlice, HookRadianceSlice}, h.Names())
	require.Error(t, h.Register(HookConeProfile, coneProfile))
	require.Error(t, h.Register("", coneProfile))

	var calls int
	require.NoError(t, h.Register("count", func(io.Writer, Input) error {
		calls++
		return nil
	}))
	require.NoError(t, h.Run("count", &bytes.Buffer{}, Input{}))
	require.Equal(t, 1, calls)
	require.Error(t, h.Run("missing", &bytes.Buffer{}, Input{}))
	require.Error(t, h.Run(HookOpacitySlice, &bytes.Buffer{}, Input{}))

	cfg := testConfig()
	cache, err := voxel.NewCache(cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	in := Input{Cache: cache, Slice: Slice{Axis: 2, Index: 1, Scale: 2}}
	require.NoError(t, h.Run(HookRadianceSlice, &buf, in))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 20, img.Bounds().Dx())

	tr, err := conetrace.New(cfg, cache, centered{cfg}, conetrace.DefaultParams())
	require.NoError(t, err)
	in.Tracer = tr
	in.Dir = ms3.Vec{X: 1}
	buf.Reset()
	require.NoError(t, h.Run(HookConeProfile, &buf, in))
	_, err = png.Decode(&buf)
	require.NoError(t, err)
}
