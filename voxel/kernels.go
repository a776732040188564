package voxel

import (
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
)

// Kernels are the volume passes run between voxelization and cone tracing.
// Every call runs to completion before returning.
type Kernels interface {
	// Clear zeros every face and channel of the voxels covered by boxes.
	// Boxes are in level voxel coordinates and addressed toroidally.
	Clear(t *Texture, level int, boxes []d3.Box) error
	// Downsample rebuilds the texels of coarse level whose children lie
	// inside the fine region of level-1. It returns the coarse box rebuilt.
	Downsample(t *Texture, level int, fine, coarse clipmap.Region, filter clipmap.Filter, block int) (d3.Box, error)
	// WrapBorder refreshes the border band of a level from the opposite interior edge.
	WrapBorder(t *Texture, level int) error
	// CopyAlpha copies the opacity of a level into the radiance alpha channel.
	CopyAlpha(opacity, radiance *Texture, level int) error
}

// CPUKernels runs the volume passes on the calling goroutine.
type CPUKernels struct{}

var _ Kernels = CPUKernels{}

func (CPUKernels) Clear(t *Texture, level int, boxes []d3.Box) error {
	for _, box := range boxes {
		box.ForEach(func(v d3.Vec3i) {
			s := t.Storage(v)
			for f := Face(0); f < NumFaces; f++ {
				clear(t.Texel(level, f, s))
			}
		})
	}
	return nil
}

func (CPUKernels) WrapBorder(t *Texture, level int) error {
	b, e, p := t.Border, t.Extent, t.Padded()
	// Axes are wrapped one after the other over the full padded range of the
	// remaining axes so that edges and corners pick up already wrapped texels.
	for axis := 0; axis < 3; axis++ {
		band := d3.Cube(d3.Vec3i{}, p)
		for _, side := range [2][2]int{{0, b}, {e + b, p}} {
			band.Min[axis], band.Max[axis] = side[0], side[1]
			band.ForEach(func(s d3.Vec3i) {
				src := s
				if s[axis] < b {
					src[axis] += e
				} else {
					src[axis] -= e
				}
				for f := Face(0); f < NumFaces; f++ {
					copy(t.Texel(level, f, s), t.Texel(level, f, src))
				}
			})
		}
	}
	return nil
}

func (CPUKernels) CopyAlpha(opacity, radiance *Texture, level int) error {
	if opacity.Channels != 1 || radiance.Channels != 4 {
		panic("CopyAlpha wants a single channel opacity and RGBA radiance volume")
	}
	opacity.levelBlock().ForEach(func(s d3.Vec3i) {
		for f := Face(0); f < NumFaces; f++ {
			radiance.Texel(level, f, s)[3] = opacity.Texel(level, f, s)[0]
		}
	})
	return nil
}

func (CPUKernels) Downsample(t *Texture, level int, fine, coarse clipmap.Region, filter clipmap.Filter, block int) (d3.Box, error) {
	if level <= 0 {
		panic("level 0 has no finer level to downsample from")
	}
	box := DownsampleBox(fine, coarse)
	var children [8][]float32
	for _, tile := range Tiles(box, block) {
		tile.ForEach(func(c d3.Vec3i) {
			dst := t.Storage(c)
			for f := Face(0); f < NumFaces; f++ {
				for i := range children {
					child := c.ScaleMul(2).Add(childOffset(i))
					children[i] = t.Texel(level-1, f, t.Storage(child))
				}
				Reduce(t.Texel(level, f, dst), children, f, filter)
			}
		})
	}
	return box, nil
}

// DownsampleBox returns the coarse cells whose 2x2x2 children all lie
// inside the fine region, clipped to the coarse region.
func DownsampleBox(fine, coarse clipmap.Region) d3.Box {
	fb := fine.Box()
	var box d3.Box
	for i := 0; i < 3; i++ {
		box.Min[i] = d3.CeilDiv(fb.Min[i], 2)
		box.Max[i] = d3.FloorDiv(fb.Max[i], 2)
	}
	return box.Intersect(coarse.Box())
}

// Tiles splits box into cubes of side block. Edge tiles may be smaller.
func Tiles(box d3.Box, block int) []d3.Box {
	if box.Empty() {
		return nil
	}
	var tiles []d3.Box
	for z := box.Min[2]; z < box.Max[2]; z += block {
		for y := box.Min[1]; y < box.Max[1]; y += block {
			for x := box.Min[0]; x < box.Max[0]; x += block {
				tile := d3.Cube(d3.Vec3i{x, y, z}, block)
				tiles = append(tiles, tile.Intersect(box))
			}
		}
	}
	return tiles
}

// childOffset returns the offset of child i in x-fastest order.
func childOffset(i int) d3.Vec3i {
	return d3.Vec3i{i & 1, (i >> 1) & 1, (i >> 2) & 1}
}

// Reduce writes into dst the filtered value of the eight children of a
// coarse cell for one face. The last channel is treated as coverage.
func Reduce(dst []float32, children [8][]float32, face Face, filter clipmap.Filter) {
	nch := len(dst)
	switch filter {
	case clipmap.FilterAverage:
		for ch := 0; ch < nch; ch++ {
			var sum float32
			for _, c := range children {
				sum += c[ch]
			}
			dst[ch] = sum / 8
		}
	case clipmap.FilterMax:
		for ch := 0; ch < nch; ch++ {
			var m float32
			for _, c := range children {
				m = max(m, c[ch])
			}
			dst[ch] = m
		}
	case clipmap.FilterAnisotropic:
		axis := face.Axis()
		bit := 1 << axis
		alpha := nch - 1
		clear(dst)
		for i := range children {
			if i&bit != 0 {
				continue // Visit each pair along the axis once from its low child.
			}
			lo, hi := children[i], children[i|bit]
			front, back := hi, lo
			if face.Sign() < 0 {
				front, back = lo, hi
			}
			transmit := 1 - front[alpha]
			for ch := 0; ch < nch; ch++ {
				dst[ch] += (front[ch] + transmit*back[ch]) / 4
			}
		}
	default:
		panic("unknown downsample filter")
	}
}
