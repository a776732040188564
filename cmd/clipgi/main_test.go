package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/glgl/math/ms3"
	"github.com/stretchr/testify/require"
)

func testConf() config {
	return config{
		Frames: 4,
		Width:  8,
		Height: 6,
		Clipmap: clipmapConfig{
			Resolution:      16,
			BaseExtent:      8,
			Border:          1,
			ClipMinChange:   "2, 2,4,4,8,8",
			Filter:          "average",
			DownsampleBlock: 4,
			ShadowSize:      64,
		},
	}
}

func TestClipmapFromConfig(t *testing.T) {
	cfg, err := clipmapFromConfig(testConf())
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Resolution)
	require.Equal(t, clipmap.FilterAverage, cfg.DownsampleFilter)
	require.Equal(t, [clipmap.NumLevels]int{2, 2, 4, 4, 8, 8}, cfg.ClipMinChange)
	require.Equal(t, 4, cfg.DownsampleBlock)

	conf := testConf()
	conf.Clipmap.ClipMinChange = ""
	cfg, err = clipmapFromConfig(conf)
	require.NoError(t, err)
	require.Equal(t, clipmap.DefaultConfig().ClipMinChange, cfg.ClipMinChange)

	def := clipmap.DefaultConfig()
	change, err := parseClipMinChange(formatClipMinChange(def.ClipMinChange))
	require.NoError(t, err)
	require.Equal(t, def.ClipMinChange, change)
	for _, bad := range []string{"2,2,2", "2,2,2,2,2,x", "3,3,3,3,3,3"} {
		conf.Clipmap.ClipMinChange = bad
		_, err = clipmapFromConfig(conf)
		require.Error(t, err, bad)
	}

	conf = testConf()
	conf.Clipmap.Resolution = 12
	_, err = clipmapFromConfig(conf)
	require.Error(t, err)

	conf = testConf()
	conf.Clipmap.Filter = "median"
	_, err = clipmapFromConfig(conf)
	require.Error(t, err)

	conf = testConf()
	conf.Frames = 0
	_, err = clipmapFromConfig(conf)
	require.Error(t, err)
}

func TestLoadParams(t *testing.T) {
	params, err := loadParams("", "")
	require.NoError(t, err)
	require.Equal(t, conetrace.DefaultParams(), params)

	file := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"enable_32_cones": true, "display_mode": "ao"}`), 0o644))
	params, err = loadParams(file, "")
	require.NoError(t, err)
	require.True(t, params.Enable32Cones)
	require.Equal(t, conetrace.DisplayAmbientOcclusion, params.DisplayMode)

	params, err = loadParams(file, "specular")
	require.NoError(t, err)
	require.Equal(t, conetrace.DisplayIndirectSpecular, params.DisplayMode)

	_, err = loadParams(file, "bogus")
	require.Error(t, err)
	require.NoError(t, os.WriteFile(file, []byte(`{"min_trace_step_factor": -1}`), 0o644))
	_, err = loadParams(file, "")
	require.Error(t, err)
	_, err = loadParams(filepath.Join(t.TempDir(), "missing.json"), "")
	require.Error(t, err)
}

func TestLoadScene(t *testing.T) {
	mesh, err := loadScene("cornell")
	require.NoError(t, err)
	require.NotZero(t, mesh.Triangles())
	_, err = loadScene(filepath.Join(t.TempDir(), "missing.stl"))
	require.Error(t, err)
}

func TestFlyThroughStaysFinite(t *testing.T) {
	bounds := ms3.Box{Min: ms3.Vec{X: -2, Y: -2, Z: -2}, Max: ms3.Vec{X: 2, Y: 2, Z: 2}}
	path := flyThrough(bounds)
	require.Equal(t, ms3.Vec{Y: 0.4, Z: 4.8}, path.At(0, 10).Origin())
	require.Equal(t, ms3.Vec{X: -0.4, Z: 1.6}, path.At(9, 10).Origin())
}

func TestShadedImage(t *testing.T) {
	img := shadedImage([]ms3.Vec{{}, {X: 1, Y: 1, Z: 1}}, 2, 1)
	require.Equal(t, uint8(0), img.RGBAAt(0, 0).R)
	// 1/(1+1) = 0.5 gamma encoded.
	require.Equal(t, uint8(186), img.RGBAAt(1, 0).G)
}
