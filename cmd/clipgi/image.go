package main

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/math/ms3"
)

// shadedImage tone maps linear colors with a Reinhard curve and gamma 2.2.
func shadedImage(pixels []ms3.Vec, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	encode := func(v float32) uint8 {
		v = v / (1 + v)
		return uint8(voxel.Clamp01(math32.Pow(v, 1/2.2))*255 + 0.5)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := pixels[y*width+x]
			img.SetRGBA(x, y, color.RGBA{R: encode(c.X), G: encode(c.Y), B: encode(c.Z), A: 255})
		}
	}
	return img
}
