package voxel

import (
	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// FaceWeights returns the three faces seen when looking along dir together
// with their weights. The faces are the ones facing back towards the viewer,
// that is, storing what leaves the voxel in direction -dir.
func FaceWeights(dir ms3.Vec) (faces [3]Face, weights [3]float32) {
	comps := [3]float32{dir.X, dir.Y, dir.Z}
	var sum float32
	for axis, c := range comps {
		faces[axis] = Face(2 * axis)
		if c > 0 {
			faces[axis]++ // Negative face.
		}
		weights[axis] = c * c
		sum += weights[axis]
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	return faces, weights
}

// Sample trilinearly samples the texture at world position pos of a level,
// blending the faces seen along dir. For single channel textures only
// element 0 of the result is set. Positions outside the region wrap around,
// callers should check [clipmap.Region.Contains] first.
func (t *Texture) Sample(level int, region clipmap.Region, pos, dir ms3.Vec) (out [4]float32) {
	g := ms3.AddScalar(-0.5, ms3.Scale(1/region.VoxelSize, pos))
	i0 := d3.FloorElem(g)
	frac := ms3.Sub(g, i0.Vec())
	// The +1 neighbour of the last core texel lands in the border band.
	base := t.Storage(i0)
	faces, weights := FaceWeights(dir)
	for k, face := range faces {
		if weights[k] == 0 {
			continue
		}
		for corner := 0; corner < 8; corner++ {
			off := childOffset(corner)
			w := weights[k] * lerpWeight(frac.X, off[0]) * lerpWeight(frac.Y, off[1]) * lerpWeight(frac.Z, off[2])
			if w == 0 {
				continue
			}
			texel := t.Texel(level, face, base.Add(off))
			for ch, v := range texel {
				out[ch] += w * v
			}
		}
	}
	return out
}

func lerpWeight(frac float32, hi int) float32 {
	if hi == 1 {
		return frac
	}
	return 1 - frac
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
