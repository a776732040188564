// Package glkernel runs the clipmap volume passes as OpenGL compute shaders.
//
// Every call uploads the level blocks it touches, dispatches one invocation
// per voxel and reads the result back into the CPU texture, so results are
// interchangeable with voxel.CPUKernels. A GL 4.6 context must be current on
// the calling thread.
package glkernel

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/gl/all-core/gl"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/internal/d3"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

//go:embed shaders/*.glsl
var shaderFS embed.FS

// Kernels implements voxel.Kernels on the GPU.
type Kernels struct {
	programs map[string]glgl.Program
	maxSize  int
}

var _ voxel.Kernels = (*Kernels)(nil)

// New returns GPU kernels for the current GL context.
func New() (*Kernels, error) {
	var maxSize int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxSize)
	if maxSize <= 0 {
		return nil, errors.New("no current GL context")
	}
	return &Kernels{
		programs: make(map[string]glgl.Program),
		maxSize:  int(maxSize),
	}, nil
}

// MemoryBarrier makes image writes of previous dispatches visible to the next ones.
func (k *Kernels) MemoryBarrier() {
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.TEXTURE_UPDATE_BARRIER_BIT)
}

func (k *Kernels) Clear(t *voxel.Texture, level int, boxes []d3.Box) error {
	prog, err := k.program("clear", t, nil)
	if err != nil {
		return err
	}
	return k.run(prog, t, level, func(blk *block) error {
		dst, err := blk.upload(0, true)
		if err != nil {
			return err
		}
		for _, box := range boxes {
			if box.Empty() {
				continue
			}
			setOrigin(box.Min)
			size := box.Size()
			if err := prog.RunCompute(size[0], size[1], size[2]); err != nil {
				return err
			}
		}
		k.MemoryBarrier()
		return blk.download(dst)
	})
}

func (k *Kernels) WrapBorder(t *voxel.Texture, level int) error {
	prog, err := k.program("wrapborder", t, nil)
	if err != nil {
		return err
	}
	return k.run(prog, t, level, func(blk *block) error {
		if _, err := blk.upload(0, false); err != nil {
			return err
		}
		dst, err := blk.upload(1, true)
		if err != nil {
			return err
		}
		p := t.Padded()
		if err := prog.RunCompute(p, p, p); err != nil {
			return err
		}
		k.MemoryBarrier()
		return blk.download(dst)
	})
}

func (k *Kernels) CopyAlpha(opacity, radiance *voxel.Texture, level int) error {
	if opacity.Channels != 1 || radiance.Channels != 4 {
		panic("CopyAlpha wants a single channel opacity and RGBA radiance volume")
	}
	prog, err := k.program("copyalpha", radiance, nil)
	if err != nil {
		return err
	}
	return k.run(prog, radiance, level, func(blk *block) error {
		op := newBlock(opacity, level)
		defer op.release()
		if _, err := op.upload(0, false); err != nil {
			return err
		}
		if _, err := blk.upload(1, false); err != nil {
			return err
		}
		dst, err := blk.upload(2, true)
		if err != nil {
			return err
		}
		p := radiance.Padded()
		if err := prog.RunCompute(p, p, p); err != nil {
			return err
		}
		k.MemoryBarrier()
		return blk.download(dst)
	})
}

func (k *Kernels) Downsample(t *voxel.Texture, level int, fine, coarse clipmap.Region, filter clipmap.Filter, block int) (d3.Box, error) {
	if level <= 0 {
		panic("level 0 has no finer level to downsample from")
	}
	box := voxel.DownsampleBox(fine, coarse)
	if box.Empty() {
		return box, nil
	}
	prog, err := k.program("downsample", t, map[string]string{"FILTER": strconv.Itoa(int(filter))})
	if err != nil {
		return box, err
	}
	err = k.run(prog, t, level, func(blk *block) error {
		src := newBlock(t, level-1)
		defer src.release()
		if _, err := src.upload(0, false); err != nil {
			return err
		}
		dst, err := blk.upload(1, true)
		if err != nil {
			return err
		}
		// Tiles bound the size of a single dispatch.
		for _, tile := range voxel.Tiles(box, block) {
			setOrigin(tile.Min)
			size := tile.Size()
			if err := prog.RunCompute(size[0], size[1], size[2]); err != nil {
				return err
			}
		}
		k.MemoryBarrier()
		return blk.download(dst)
	})
	return box, err
}

// run binds prog and calls fn with the block of the level being written.
func (k *Kernels) run(prog glgl.Program, t *voxel.Texture, level int, fn func(*block) error) error {
	p := t.Padded()
	if int(voxel.NumFaces)*p > k.maxSize || p*p > k.maxSize {
		return errors.New("level block exceeds GL texture size").
			WithTag("texture", t.Name).
			WithTag("padded", p).
			WithTag("max", k.maxSize)
	}
	prog.Bind()
	blk := newBlock(t, level)
	defer blk.release()
	if err := fn(blk); err != nil {
		return errors.New("compute dispatch failed").
			WithTag("texture", t.Name).
			WithTag("level", level).
			Wrap(err)
	}
	return nil
}

// program returns the compiled kernel for the texture geometry, compiling
// it on first use. Extra defines are added to the geometry defines.
func (k *Kernels) program(name string, t *voxel.Texture, extra map[string]string) (glgl.Program, error) {
	defines := map[string]string{
		"E":      strconv.Itoa(t.Extent),
		"B":      strconv.Itoa(t.Border),
		"P":      strconv.Itoa(t.Padded()),
		"FORMAT": "r32f",
		"COVER":  "(c) (c).r",
	}
	if t.Channels == 4 {
		defines["FORMAT"] = "rgba32f"
		defines["COVER"] = "(c) (c).a"
	}
	for key, v := range extra {
		defines[key] = v
	}
	src, err := source(name, defines)
	if err != nil {
		return glgl.Program{}, err
	}
	if prog, ok := k.programs[src]; ok {
		return prog, nil
	}
	combined, err := glgl.ParseCombined(strings.NewReader(src))
	if err != nil {
		return glgl.Program{}, errors.New("parsing kernel source").WithTag("kernel", name).Wrap(err)
	}
	prog, err := glgl.CompileProgram(combined)
	if err != nil {
		return glgl.Program{}, errors.New("compiling kernel").
			WithTag("kernel", name).
			WithTag("defines", defines).
			Wrap(err)
	}
	k.programs[src] = prog
	return prog, nil
}

// source assembles the compute shader: header, sorted defines, shared
// helpers and the kernel body.
func source(name string, defines map[string]string) (string, error) {
	common, err := shaderFS.ReadFile("shaders/common.glsl")
	if err != nil {
		return "", err
	}
	body, err := shaderFS.ReadFile("shaders/" + name + ".glsl")
	if err != nil {
		return "", errors.New("unknown kernel").WithTag("kernel", name).Wrap(err)
	}
	keys := make([]string, 0, len(defines))
	for key := range defines {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteString("#shader compute\n#version 430\n")
	for _, key := range keys {
		if strings.HasPrefix(defines[key], "(") {
			// Function-like macro.
			fmt.Fprintf(&buf, "#define %s%s\n", key, defines[key])
			continue
		}
		fmt.Fprintf(&buf, "#define %s %s\n", key, defines[key])
	}
	buf.Write(common)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.String(), nil
}

func setOrigin(v d3.Vec3i) {
	var prog int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &prog)
	loc := gl.GetUniformLocation(uint32(prog), gl.Str("origin\x00"))
	gl.Uniform3i(loc, int32(v[0]), int32(v[1]), int32(v[2]))
}
