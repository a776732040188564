package conetrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

const epsilon = 1e-6

// coneSet is a fixed set of diffuse cone directions around +Z.
type coneSet struct {
	dirs []ms3.Vec
	// aperture is the half angle of every cone. The cones together
	// cover the hemisphere's solid angle.
	aperture float32
}

// newConeSet distributes n cones over the hemisphere around +Z with a
// cosine weighted density, so irradiance is the plain average of the cones.
// Samples are stratified in elevation and spread in azimuth by the golden angle.
func newConeSet(n int) coneSet {
	const goldenAngle = 2.39996322972865332
	cs := coneSet{
		dirs:     make([]ms3.Vec, n),
		aperture: math32.Acos(1 - 1/float32(n)),
	}
	for i := range cs.dirs {
		u := (float32(i) + 0.5) / float32(n)
		r := math32.Sqrt(u)
		phi := goldenAngle * float32(i)
		cs.dirs[i] = ms3.Vec{
			X: r * math32.Cos(phi),
			Y: r * math32.Sin(phi),
			Z: math32.Sqrt(1 - u),
		}
	}
	return cs
}

// rotation is a 3x3 row major rotation matrix.
type rotation [9]float32

func (m rotation) apply(v ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

var identity = rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}

// rotateToVec returns the rotation matrix that transforms a onto the same direction as b.
func rotateToVec(a, b ms3.Vec) rotation {
	ra := r3.Vec{X: float64(a.X), Y: float64(a.Y), Z: float64(a.Z)}
	rb := r3.Vec{X: float64(b.X), Y: float64(b.Y), Z: float64(b.Z)}
	if r3.Norm(ra) < epsilon || r3.Norm(rb) < epsilon {
		return identity
	}
	ra = r3.Unit(ra)
	rb = r3.Unit(rb)
	dot := r3.Dot(ra, rb)
	switch {
	case dot > 1-epsilon:
		return identity
	case dot < -1+epsilon:
		// Opposite vectors. Point reflection maps the hemisphere of a onto b's.
		return rotation{-1, 0, 0, 0, -1, 0, 0, 0, -1}
	}
	// See: https://math.stackexchange.com/questions/180418/calculate-rotation-matrix-to-align-vector-a-to-vector-b-in-3d
	vx := r3.Skew(r3.Cross(ra, rb))
	vx2 := r3.NewMat(nil)
	vx2.Mul(vx, vx)
	vx2.Scale(1/(1+dot), vx2)
	vx.Add(vx, r3.Eye())
	vx.Add(vx, vx2)
	var m rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[3*i+j] = float32(vx.At(i, j))
		}
	}
	return m
}

// reflect returns v mirrored about the plane with unit normal n.
func reflect(v, n ms3.Vec) ms3.Vec {
	return ms3.Sub(v, ms3.Scale(2*ms3.Dot(v, n), n))
}
