package d3

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// Vec3i is a 3D integer vector, used for voxel coordinates.
type Vec3i [3]int

// Elem returns a vector with all components set to v.
func Elem(v int) Vec3i { return Vec3i{v, v, v} }

// Add adds two vectors. Return v = a + b.
func (a Vec3i) Add(b Vec3i) Vec3i {
	return Vec3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub subtracts two vectors. Return v = a - b.
func (a Vec3i) Sub(b Vec3i) Vec3i {
	return Vec3i{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// AddScalar adds a scalar to each component of the vector.
func (a Vec3i) AddScalar(b int) Vec3i {
	return Vec3i{a[0] + b, a[1] + b, a[2] + b}
}

// ScaleMul multiplies each component by f.
func (a Vec3i) ScaleMul(f int) Vec3i {
	return Vec3i{a[0] * f, a[1] * f, a[2] * f}
}

// IsZero returns true if all components are zero.
func (a Vec3i) IsZero() bool { return a == Vec3i{} }

// Vec converts the integer vector to a float vector.
func (a Vec3i) Vec() ms3.Vec {
	return ms3.Vec{X: float32(a[0]), Y: float32(a[1]), Z: float32(a[2])}
}

// Comp returns the i'th component of a float vector.
func Comp(v ms3.Vec, i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("bad vector component")
}

// FloorElem converts a float vector to integer coordinates rounding towards -inf.
func FloorElem(v ms3.Vec) Vec3i {
	return Vec3i{
		int(math32.Floor(v.X)),
		int(math32.Floor(v.Y)),
		int(math32.Floor(v.Z)),
	}
}

// Mod returns a modulo m with the result in [0, m).
func Mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// ModElem applies Mod to each component.
func (a Vec3i) ModElem(m int) Vec3i {
	return Vec3i{Mod(a[0], m), Mod(a[1], m), Mod(a[2], m)}
}

// FloorDiv divides rounding towards -inf.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CeilDiv divides rounding towards +inf.
func CeilDiv(a, b int) int {
	return -FloorDiv(-a, b)
}

func Abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// IsPow2 reports whether v is a positive power of two.
func IsPow2(v int) bool {
	return v > 0 && v&(v-1) == 0
}
