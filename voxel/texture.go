package voxel

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// Face is one of the six anisotropic voxel directions. A face stores what
// leaves the voxel towards its direction.
type Face int

const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
	NumFaces
)

// Axis returns the axis index the face is aligned to.
func (f Face) Axis() int { return int(f) / 2 }

// Sign returns +1 for positive faces and -1 for negative ones.
func (f Face) Sign() int {
	if f%2 == 0 {
		return 1
	}
	return -1
}

// Dir returns the unit direction of the face.
func (f Face) Dir() ms3.Vec {
	var v d3.Vec3i
	v[f.Axis()] = f.Sign()
	return v.Vec()
}

func (f Face) String() string {
	return [...]string{"+x", "-x", "+y", "-y", "+z", "-z"}[f]
}

// Texture is a single resource holding every clip level and every face of a
// volume, side by side. Its logical size is
//
//	width  = NumFaces * padded
//	height = levels * padded
//	depth  = padded
//
// where padded is the level resolution plus the border on both sides.
// Data is stored x-fastest with Channels interleaved floats per texel.
type Texture struct {
	Name     string
	Channels int
	Levels   int
	Extent   int
	Border   int
	Data     []float32
}

const maxTexels = 1<<31 - 1

// NewTexture allocates a zeroed texture for the clipmap configuration.
func NewTexture(name string, cfg clipmap.Config, channels int) (*Texture, error) {
	if channels != 1 && channels != 4 {
		return nil, errors.New("unsupported texture channel count").
			WithTag("texture", name).
			WithTag("channels", channels)
	}
	t := &Texture{
		Name:     name,
		Channels: channels,
		Levels:   cfg.Levels,
		Extent:   cfg.Resolution,
		Border:   cfg.Border,
	}
	w, h, d := t.Size()
	n := w * h * d
	if n <= 0 || n >= maxTexels {
		return nil, errors.New("texture too large").
			WithTag("texture", name).
			WithTag("texels", n)
	}
	t.Data = make([]float32, n*channels)
	return t, nil
}

// Padded returns the side of a level block, border included.
func (t *Texture) Padded() int { return t.Extent + 2*t.Border }

// Size returns the texture width, height and depth in texels.
func (t *Texture) Size() (w, h, d int) {
	p := t.Padded()
	return int(NumFaces) * p, t.Levels * p, p
}

// Storage maps a level voxel coordinate onto its toroidal storage coordinate
// inside the padded level block.
func (t *Texture) Storage(v d3.Vec3i) d3.Vec3i {
	return v.ModElem(t.Extent).AddScalar(t.Border)
}

// Offset returns the index into Data of channel 0 of the texel at storage
// coordinate s of the given level and face.
func (t *Texture) Offset(level int, face Face, s d3.Vec3i) int {
	p := t.Padded()
	w, h, _ := t.Size()
	x := int(face)*p + s[0]
	y := level*p + s[1]
	return ((s[2]*h+y)*w + x) * t.Channels
}

// Texel returns the channels of a texel at storage coordinate s.
func (t *Texture) Texel(level int, face Face, s d3.Vec3i) []float32 {
	off := t.Offset(level, face, s)
	return t.Data[off : off+t.Channels]
}

// At returns channel ch of voxel v (level coordinates).
func (t *Texture) At(level int, face Face, v d3.Vec3i, ch int) float32 {
	return t.Data[t.Offset(level, face, t.Storage(v))+ch]
}

// Set writes channel ch of voxel v (level coordinates).
func (t *Texture) Set(level int, face Face, v d3.Vec3i, ch int, value float32) {
	t.Data[t.Offset(level, face, t.Storage(v))+ch] = value
}

// Max writes the maximum of the stored value and value into channel ch of voxel v.
func (t *Texture) Max(level int, face Face, v d3.Vec3i, ch int, value float32) {
	off := t.Offset(level, face, t.Storage(v)) + ch
	if value > t.Data[off] {
		t.Data[off] = value
	}
}

// CountNonZero counts core voxels of a level whose face has a non-zero channel 0.
func (t *Texture) CountNonZero(level int, face Face) (n int) {
	core := d3.Cube(d3.Elem(t.Border), t.Extent)
	core.ForEach(func(s d3.Vec3i) {
		if t.Texel(level, face, s)[0] != 0 {
			n++
		}
	})
	return n
}

// levelBlock is the padded storage box of one level.
func (t *Texture) levelBlock() d3.Box {
	return d3.Cube(d3.Vec3i{}, t.Padded())
}

// Cache holds the opacity and radiance volumes backing the clipmap.
type Cache struct {
	Config   clipmap.Config
	Opacity  *Texture
	Radiance *Texture
}

// NewCache allocates the opacity (single channel) and radiance (RGBA) volumes.
func NewCache(cfg clipmap.Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opacity, err := NewTexture("opacity", cfg, 1)
	if err != nil {
		return nil, errors.New("creating opacity volume failed").Wrap(err)
	}
	radiance, err := NewTexture("radiance", cfg, 4)
	if err != nil {
		return nil, errors.New("creating radiance volume failed").Wrap(err)
	}
	return &Cache{Config: cfg, Opacity: opacity, Radiance: radiance}, nil
}
