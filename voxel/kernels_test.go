package voxel

import (
	"testing"

	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/glgl/math/ms3"
	"github.com/stretchr/testify/require"
)

func smallConfig() clipmap.Config {
	cfg := clipmap.DefaultConfig()
	cfg.Resolution = 8
	cfg.BaseExtent = 8
	cfg.Border = 1
	cfg.ClipMinChange = [clipmap.NumLevels]int{2, 2, 2, 2, 2, 2}
	return cfg
}

func region(cfg clipmap.Config, level int, corner d3.Vec3i) clipmap.Region {
	return clipmap.Region{MinCorner: corner, Extent: cfg.Resolution, VoxelSize: cfg.VoxelSize(level)}
}

func fill(t *Texture, level int, box d3.Box, value float32) {
	box.ForEach(func(v d3.Vec3i) {
		for f := Face(0); f < NumFaces; f++ {
			for ch := 0; ch < t.Channels; ch++ {
				t.Set(level, f, v, ch, value)
			}
		}
	})
}

func TestNewCache(t *testing.T) {
	cfg := smallConfig()
	c, err := NewCache(cfg)
	require.NoError(t, err)
	w, h, d := c.Opacity.Size()
	require.Equal(t, 6*10, w)
	require.Equal(t, 6*10, h)
	require.Equal(t, 10, d)
	require.Len(t, c.Opacity.Data, w*h*d)
	require.Len(t, c.Radiance.Data, 4*w*h*d)

	cfg.Resolution = 7
	_, err = NewCache(cfg)
	require.Error(t, err)
	_, err = NewTexture("bad", smallConfig(), 3)
	require.Error(t, err)
}

func TestClearToroidal(t *testing.T) {
	cfg := smallConfig()
	tex, err := NewTexture("opacity", cfg, 1)
	require.NoError(t, err)
	whole := d3.Cube(d3.Vec3i{}, 8)
	fill(tex, 0, whole, 1)
	fill(tex, 1, whole, 1)

	// Slab past the storage end wraps onto texels 0 and 1.
	slab := d3.Box{Min: d3.Vec3i{8, 0, 0}, Max: d3.Vec3i{10, 8, 8}}
	require.NoError(t, CPUKernels{}.Clear(tex, 0, []d3.Box{slab}))
	whole.ForEach(func(v d3.Vec3i) {
		want := float32(1)
		if v[0] < 2 {
			want = 0
		}
		for f := Face(0); f < NumFaces; f++ {
			require.Equal(t, want, tex.At(0, f, v, 0), "voxel %v face %v", v, f)
		}
	})
	require.Equal(t, 8*8*8, tex.CountNonZero(1, FacePosX), "other levels untouched")
}

func TestWrapBorder(t *testing.T) {
	cfg := smallConfig()
	tex, err := NewTexture("radiance", cfg, 4)
	require.NoError(t, err)
	d3.Cube(d3.Vec3i{}, 8).ForEach(func(v d3.Vec3i) {
		for f := Face(0); f < NumFaces; f++ {
			for ch := 0; ch < 4; ch++ {
				tex.Set(2, f, v, ch, float32(v[0]+10*v[1]+100*v[2]+1000*ch)+float32(f)/10)
			}
		}
	})
	require.NoError(t, CPUKernels{}.WrapBorder(tex, 2))
	p := tex.Padded()
	d3.Cube(d3.Vec3i{}, p).ForEach(func(s d3.Vec3i) {
		// Every storage texel, border included, must equal the core texel it mirrors.
		core := s.AddScalar(-tex.Border).ModElem(tex.Extent).AddScalar(tex.Border)
		for f := Face(0); f < NumFaces; f++ {
			require.Equal(t, tex.Texel(2, f, core), tex.Texel(2, f, s), "storage %v", s)
		}
	})
}

func TestCopyAlpha(t *testing.T) {
	c, err := NewCache(smallConfig())
	require.NoError(t, err)
	c.Opacity.Set(3, FaceNegY, d3.Vec3i{1, 2, 3}, 0, 0.75)
	c.Radiance.Set(3, FaceNegY, d3.Vec3i{1, 2, 3}, 0, 0.5)
	require.NoError(t, CPUKernels{}.CopyAlpha(c.Opacity, c.Radiance, 3))
	require.Equal(t, float32(0.75), c.Radiance.At(3, FaceNegY, d3.Vec3i{1, 2, 3}, 3))
	require.Equal(t, float32(0.5), c.Radiance.At(3, FaceNegY, d3.Vec3i{1, 2, 3}, 0))
	require.Zero(t, c.Radiance.At(3, FacePosY, d3.Vec3i{1, 2, 3}, 3))
}

func TestDownsampleBox(t *testing.T) {
	cfg := smallConfig()
	fine := region(cfg, 0, d3.Vec3i{-4, -4, -4})
	coarse := region(cfg, 1, d3.Vec3i{-4, -4, -4})
	require.Equal(t, d3.Box{Min: d3.Elem(-2), Max: d3.Elem(2)}, DownsampleBox(fine, coarse))

	// Odd fine corner: only cells with both children inside.
	fine.MinCorner = d3.Vec3i{-3, -4, -4}
	box := DownsampleBox(fine, coarse)
	require.Equal(t, -1, box.Min[0])
	require.Equal(t, 2, box.Max[0])
}

func TestDownsampleFilters(t *testing.T) {
	cfg := smallConfig()
	fine := region(cfg, 0, d3.Vec3i{})
	coarse := region(cfg, 1, d3.Vec3i{-2, -2, -2})
	// Fill only the x-low half of the fine cell block of coarse cell {0,0,0}.
	children := d3.Box{Min: d3.Vec3i{0, 0, 0}, Max: d3.Vec3i{1, 2, 2}}

	for _, tc := range []struct {
		filter clipmap.Filter
		posX   float32
		negX   float32
		posY   float32
	}{
		{filter: clipmap.FilterAverage, posX: 0.5, negX: 0.5, posY: 0.5},
		{filter: clipmap.FilterMax, posX: 1, negX: 1, posY: 1},
		// Along x one of the two children is always opaque; along y half of the pairs are empty.
		{filter: clipmap.FilterAnisotropic, posX: 1, negX: 1, posY: 0.5},
	} {
		tex, err := NewTexture("opacity", cfg, 1)
		require.NoError(t, err)
		fill(tex, 0, children, 1)
		box, err := CPUKernels{}.Downsample(tex, 1, fine, coarse, tc.filter, 2)
		require.NoError(t, err)
		require.Equal(t, d3.Box{Min: d3.Vec3i{0, 0, 0}, Max: d3.Vec3i{4, 4, 4}}, box)
		require.Equal(t, tc.posX, tex.At(1, FacePosX, d3.Vec3i{}, 0), tc.filter.String())
		require.Equal(t, tc.negX, tex.At(1, FaceNegX, d3.Vec3i{}, 0), tc.filter.String())
		require.Equal(t, tc.posY, tex.At(1, FacePosY, d3.Vec3i{}, 0), tc.filter.String())
		require.Zero(t, tex.At(1, FacePosX, d3.Vec3i{1, 0, 0}, 0), tc.filter.String())
	}
}

func TestAnisotropicRadianceOcclusion(t *testing.T) {
	// A lit opaque child in front hides a lit child behind it.
	var (
		front = []float32{1, 0, 0, 1}
		back  = []float32{0, 1, 0, 1}
		empty = []float32{0, 0, 0, 0}
	)
	var children [8][]float32
	for i := range children {
		if i&1 == 0 {
			children[i] = back // low x
		} else {
			children[i] = front // high x
		}
	}
	dst := make([]float32, 4)
	Reduce(dst, children, FacePosX, clipmap.FilterAnisotropic)
	require.Equal(t, []float32{1, 0, 0, 1}, dst)
	Reduce(dst, children, FaceNegX, clipmap.FilterAnisotropic)
	require.Equal(t, []float32{0, 1, 0, 1}, dst)

	for i := range children {
		if i&1 == 1 {
			children[i] = empty
		}
	}
	Reduce(dst, children, FacePosX, clipmap.FilterAnisotropic)
	require.Equal(t, []float32{0, 1, 0, 1}, dst, "empty front lets the back through")
}

func TestTiles(t *testing.T) {
	box := d3.Box{Min: d3.Vec3i{-3, 0, 0}, Max: d3.Vec3i{5, 3, 1}}
	tiles := Tiles(box, 4)
	total := 0
	for _, tile := range tiles {
		require.True(t, box.ContainsBox(tile))
		total += tile.Volume()
	}
	require.Equal(t, box.Volume(), total)
	require.Nil(t, Tiles(d3.Box{}, 4))
}

func TestSampleAcrossBorder(t *testing.T) {
	cfg := smallConfig()
	tex, err := NewTexture("opacity", cfg, 1)
	require.NoError(t, err)
	reg := region(cfg, 0, d3.Vec3i{})
	// Last core voxel along x and the first one: toroidal neighbours.
	fill(tex, 0, d3.Box{Min: d3.Vec3i{7, 0, 0}, Max: d3.Vec3i{8, 8, 8}}, 1)
	fill(tex, 0, d3.Box{Min: d3.Vec3i{0, 0, 0}, Max: d3.Vec3i{1, 8, 8}}, 1)

	center := ms3.Vec{X: 7.5, Y: 4.5, Z: 4.5}
	dir := ms3.Vec{X: 1}
	require.Equal(t, float32(1), tex.Sample(0, reg, center, dir)[0])

	// Halfway towards voxel 8 (stored at 0): needs the wrapped border texel.
	edge := ms3.Vec{X: 8, Y: 4.5, Z: 4.5}
	require.Equal(t, float32(0.5), tex.Sample(0, reg, edge, dir)[0], "unwrapped border reads zero")
	require.NoError(t, CPUKernels{}.WrapBorder(tex, 0))
	require.Equal(t, float32(1), tex.Sample(0, reg, edge, dir)[0])
}

func TestFaceWeights(t *testing.T) {
	faces, w := FaceWeights(ms3.Vec{X: 1})
	require.Equal(t, FaceNegX, faces[0])
	require.Equal(t, float32(1), w[0])
	require.Zero(t, w[1])

	faces, w = FaceWeights(ms3.Unit(ms3.Vec{X: -1, Y: 1, Z: 0}))
	require.Equal(t, FacePosX, faces[0])
	require.Equal(t, FaceNegY, faces[1])
	require.InDelta(t, 0.5, w[0], 1e-6)
	require.InDelta(t, 0.5, w[1], 1e-6)
}
