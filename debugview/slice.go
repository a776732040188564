// Package debugview renders debug views of the voxel cache and the cone tracer.
package debugview

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
)

// Slice selects a plane of one level and face of a volume.
type Slice struct {
	Level int
	Face  voxel.Face
	// Axis is the axis normal to the slice plane.
	Axis int
	// Index is the storage coordinate along Axis, border included.
	Index int
	// Scale enlarges the image with nearest neighbour filtering. Values
	// below 2 leave it at one pixel per texel.
	Scale int
}

// SliceImage returns a storage slice of a texture, border included. Single
// channel volumes are drawn in grayscale, RGBA volumes as colors over black.
func SliceImage(t *voxel.Texture, s Slice) image.Image {
	p := t.Padded()
	img := image.NewRGBA(image.Rect(0, 0, p, p))
	u, w := (s.Axis+1)%3, (s.Axis+2)%3
	for row := 0; row < p; row++ {
		for col := 0; col < p; col++ {
			var st d3.Vec3i
			st[s.Axis], st[u], st[w] = s.Index, col, p-1-row
			img.Set(col, row, texelColor(t.Texel(s.Level, s.Face, st)))
		}
	}
	if s.Scale < 2 {
		return img
	}
	return resize.Resize(uint(p*s.Scale), 0, img, resize.NearestNeighbor)
}

func texelColor(texel []float32) color.RGBA {
	b := func(v float32) uint8 { return uint8(voxel.Clamp01(v)*255 + 0.5) }
	if len(texel) == 1 {
		g := b(texel[0])
		return color.RGBA{R: g, G: g, B: g, A: 255}
	}
	// Radiance is premultiplied so it can be drawn over black as is.
	return color.RGBA{R: b(texel[0]), G: b(texel[1]), B: b(texel[2]), A: 255}
}
