package glkernel

import (
	"github.com/go-gl/gl/all-core/gl"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// block is the staging copy of one level of a texture. The padded level is
// flattened to a 2D image of NumFaces*P by P*P texels, z slices stacked.
type block struct {
	tex   *voxel.Texture
	level int
	data  []float32
	cfg   glgl.TextureImgConfig
	ids   []uint32
}

// image is a block uploaded to an image unit.
type image struct {
	tex glgl.Texture
	cfg glgl.TextureImgConfig
}

func newBlock(t *voxel.Texture, level int) *block {
	p := t.Padded()
	w := int(voxel.NumFaces) * p
	blk := &block{
		tex:   t,
		level: level,
		data:  make([]float32, w*p*p*t.Channels),
	}
	blk.cfg = glgl.TextureImgConfig{
		Type:           glgl.Texture2D,
		Width:          w,
		Height:         p * p,
		Format:         gl.RED,
		MinFilter:      gl.NEAREST,
		MagFilter:      gl.NEAREST,
		Xtype:          gl.FLOAT,
		InternalFormat: gl.R32F,
	}
	if t.Channels == 4 {
		blk.cfg.Format = gl.RGBA
		blk.cfg.InternalFormat = gl.RGBA32F
	}
	blk.rows(func(dst, src []float32) { copy(dst, src) })
	return blk
}

// rows calls fn for each texture row of the level with the matching block row.
// Rows of a level are contiguous in the texture, one per (y, z) pair.
func (blk *block) rows(fn func(blockRow, texRow []float32)) {
	t := blk.tex
	p := t.Padded()
	n := int(voxel.NumFaces) * p * t.Channels
	for z := 0; z < p; z++ {
		for y := 0; y < p; y++ {
			off := t.Offset(blk.level, voxel.FacePosX, d3.Vec3i{0, y, z})
			start := (z*p + y) * n
			fn(blk.data[start:start+n], t.Data[off:off+n])
		}
	}
}

// upload creates an image bound to unit holding the block data.
func (blk *block) upload(unit uint32, writable bool) (image, error) {
	cfg := blk.cfg
	cfg.ImageUnit = unit
	cfg.Access = glgl.ReadOnly
	if writable {
		cfg.Access = glgl.WriteOnly
	}
	tex, err := glgl.NewTextureFromImage(cfg, blk.data)
	if err != nil {
		return image{}, err
	}
	// The new texture is left bound to the 2D target.
	var id int32
	gl.GetIntegerv(gl.TEXTURE_BINDING_2D, &id)
	blk.ids = append(blk.ids, uint32(id))
	return image{tex: tex, cfg: cfg}, nil
}

// download reads img back into the texture level.
func (blk *block) download(img image) error {
	if err := glgl.GetImage(blk.data, img.tex, img.cfg); err != nil {
		return err
	}
	blk.rows(func(src, dst []float32) { copy(dst, src) })
	return nil
}

func (blk *block) release() {
	if len(blk.ids) > 0 {
		gl.DeleteTextures(int32(len(blk.ids)), &blk.ids[0])
	}
	blk.ids = blk.ids[:0]
}
