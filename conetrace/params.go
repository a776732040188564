package conetrace

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// DisplayMode selects which lighting terms end up on screen. It only affects
// composition, never the cached volumes.
type DisplayMode uint8

const (
	DisplayCombined DisplayMode = iota
	DisplayDirect
	DisplayIndirectDiffuse
	DisplayIndirectSpecular
	DisplayAmbientOcclusion
	numDisplayModes
)

var displayModeNames = [numDisplayModes]string{
	DisplayCombined:         "combined",
	DisplayDirect:           "direct",
	DisplayIndirectDiffuse:  "diffuse",
	DisplayIndirectSpecular: "specular",
	DisplayAmbientOcclusion: "ao",
}

func (m DisplayMode) String() string {
	if m >= numDisplayModes {
		return "unknown"
	}
	return displayModeNames[m]
}

// ParseDisplayMode parses the name returned by [DisplayMode.String].
func ParseDisplayMode(s string) (DisplayMode, error) {
	for i, name := range displayModeNames {
		if name == s {
			return DisplayMode(i), nil
		}
	}
	return 0, errors.New("unknown display mode").WithTag("mode", s)
}

func (m DisplayMode) MarshalText() ([]byte, error) {
	if m >= numDisplayModes {
		return nil, errors.New("unknown display mode").WithTag("mode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *DisplayMode) UnmarshalText(b []byte) (err error) {
	*m, err = ParseDisplayMode(string(b))
	return err
}

// Params are the run time tunables of the cone tracer.
type Params struct {
	// IndirectDiffuseIntensity scales the diffuse cone accumulation.
	IndirectDiffuseIntensity float32 `json:"indirect_diffuse_intensity"`
	// IndirectSpecularIntensity scales the specular cone accumulation.
	IndirectSpecularIntensity float32 `json:"indirect_specular_intensity"`
	// AmbientOcclusionFactor scales ambient occlusion darkening.
	AmbientOcclusionFactor float32 `json:"ambient_occlusion_factor"`
	// OcclusionDecay controls how fast occlusion attenuates with distance.
	OcclusionDecay float32 `json:"occlusion_decay"`
	// TraceStartOffset pushes the cone origin along the surface normal, in level 0 voxels.
	TraceStartOffset float32 `json:"trace_start_offset"`
	// MinTraceStepFactor is the fraction of the cone footprint advanced per step.
	MinTraceStepFactor float32 `json:"min_trace_step_factor"`
	// Enable32Cones doubles the diffuse cone count.
	Enable32Cones bool `json:"enable_32_cones"`
	// SpecularAperture is the half angle in radians of the reflection cone.
	SpecularAperture float32 `json:"specular_aperture"`
	// MaxTraceDistance is the world distance after which cones stop. Zero means
	// half the extent of the coarsest level.
	MaxTraceDistance float32     `json:"max_trace_distance"`
	DisplayMode      DisplayMode `json:"display_mode"`
}

// DefaultParams returns the tunables used by the demo scenes.
func DefaultParams() Params {
	return Params{
		IndirectDiffuseIntensity:  1,
		IndirectSpecularIntensity: 1,
		AmbientOcclusionFactor:    1,
		OcclusionDecay:            0.5,
		TraceStartOffset:          1.5,
		MinTraceStepFactor:        0.5,
		SpecularAperture:          0.1,
		DisplayMode:               DisplayCombined,
	}
}

// Validate rejects parameters that would stall or break cone marching.
func (p Params) Validate() error {
	switch {
	case p.MinTraceStepFactor <= 0 || p.MinTraceStepFactor > 2:
		return errors.New("minimum trace step factor must be in (0, 2]").WithTag("min_trace_step_factor", p.MinTraceStepFactor)
	case p.TraceStartOffset < 0:
		return errors.New("negative trace start offset").WithTag("trace_start_offset", p.TraceStartOffset)
	case p.SpecularAperture <= 0 || p.SpecularAperture >= 1.5:
		return errors.New("specular aperture out of range").WithTag("specular_aperture", p.SpecularAperture)
	case p.OcclusionDecay < 0 || p.AmbientOcclusionFactor < 0:
		return errors.New("negative occlusion parameter")
	case p.MaxTraceDistance < 0:
		return errors.New("negative maximum trace distance")
	case p.DisplayMode >= numDisplayModes:
		return errors.New("unknown display mode").WithTag("mode", int(p.DisplayMode))
	}
	return nil
}

// ConeCount returns the number of diffuse cones.
func (p Params) ConeCount() int {
	if p.Enable32Cones {
		return 32
	}
	return 16
}
