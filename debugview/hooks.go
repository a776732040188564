package debugview

import (
	"image/png"
	"io"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/plot/vg"
)

// Names of the built in hooks.
const (
	HookOpacitySlice  = "opacity-slice"
	HookRadianceSlice = "radiance-slice"
	HookConeProfile   = "cone-profile"
)

// Input is the state a hook renders.
type Input struct {
	Cache  *voxel.Cache
	Tracer *conetrace.Tracer
	Slice  Slice
	// Origin, Dir and Aperture define the cone of the profile hook.
	Origin   ms3.Vec
	Dir      ms3.Vec
	Aperture float32
}

// Hook writes a PNG debug view of in to w.
type Hook func(w io.Writer, in Input) error

// Hooks is a registry of named debug hooks.
type Hooks struct {
	hooks map[string]Hook
}

// NewHooks returns a registry holding the built in hooks.
func NewHooks() *Hooks {
	h := &Hooks{hooks: make(map[string]Hook)}
	h.hooks[HookOpacitySlice] = opacitySlice
	h.hooks[HookRadianceSlice] = radianceSlice
	h.hooks[HookConeProfile] = coneProfile
	return h
}

// Register adds a hook. Names are unique.
func (h *Hooks) Register(name string, hook Hook) error {
	if name == "" || hook == nil {
		return errors.New("invalid debug hook").WithTag("name", name)
	}
	if _, ok := h.hooks[name]; ok {
		return errors.New("debug hook already registered").WithTag("name", name)
	}
	h.hooks[name] = hook
	return nil
}

// Names returns the registered hook names in lexical order.
func (h *Hooks) Names() []string {
	names := make([]string, 0, len(h.hooks))
	for name := range h.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run calls the hook named name.
func (h *Hooks) Run(name string, w io.Writer, in Input) error {
	hook, ok := h.hooks[name]
	if !ok {
		return errors.New("unknown debug hook").WithTag("name", name)
	}
	if err := hook(w, in); err != nil {
		return errors.New("debug hook failed").WithTag("name", name).Wrap(err)
	}
	return nil
}

func opacitySlice(w io.Writer, in Input) error {
	if in.Cache == nil {
		return errors.New("no cache")
	}
	return png.Encode(w, SliceImage(in.Cache.Opacity, in.Slice))
}

func radianceSlice(w io.Writer, in Input) error {
	if in.Cache == nil {
		return errors.New("no cache")
	}
	return png.Encode(w, SliceImage(in.Cache.Radiance, in.Slice))
}

func coneProfile(w io.Writer, in Input) error {
	if in.Tracer == nil {
		return errors.New("no cone tracer")
	}
	aperture := in.Aperture
	if aperture <= 0 {
		aperture = in.Tracer.Params().SpecularAperture
	}
	var samples []conetrace.Sample
	in.Tracer.Trace(in.Origin, ms3.Unit(in.Dir), aperture, in.Tracer.MaxDistance(), &samples)
	p, err := PlotProfile("cone profile", samples)
	if err != nil {
		return err
	}
	return WritePNG(w, p, 6*vg.Inch, 4*vg.Inch)
}
