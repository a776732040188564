package scene

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/chewxy/math32"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
	stlMaxPrealloc  = 1 << 16
)

// WriteBinarySTL writes model triangles to w in binary STL format.
func WriteBinarySTL(w io.Writer, model []ms3.Triangle) (int, error) {
	if len(model) == 0 {
		return 0, errors.New("empty triangle slice")
	}
	if int64(len(model)) > math.MaxUint32 {
		return 0, errors.New("triangle count exceeds STL limits").WithTag("triangles", len(model))
	}
	var buf [stlHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[80:], uint32(len(model)))
	n, err := w.Write(buf[:])
	if err != nil {
		return n, err
	}
	for _, tri := range model {
		putVec(buf[0:], ms3.Unit(tri.Normal()))
		putVec(buf[12:], tri[0])
		putVec(buf[24:], tri[1])
		putVec(buf[36:], tri[2])
		binary.LittleEndian.PutUint16(buf[48:], 0)
		nw, err := w.Write(buf[:stlTriangleSize])
		n += nw
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadBinarySTL reads the triangles of a binary STL file. Stored normals are
// ignored; winding decides the normal.
func ReadBinarySTL(r io.Reader) ([]ms3.Triangle, error) {
	var buf [stlHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, errors.New("reading STL header failed").Wrap(err)
	}
	count := binary.LittleEndian.Uint32(buf[80:])
	if count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	// The header count is untrusted; append grows past the initial capacity.
	model := make([]ms3.Triangle, 0, min(count, stlMaxPrealloc))
	for i := 0; i < int(count); i++ {
		if _, err := io.ReadFull(r, buf[:stlTriangleSize]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, errors.New("reading STL triangle failed").
				WithTag("triangle", i).
				WithTag("count", count).
				Wrap(err)
		}
		tri := ms3.Triangle{getVec(buf[12:]), getVec(buf[24:]), getVec(buf[36:])}
		if badVec(tri[0]) || badVec(tri[1]) || badVec(tri[2]) {
			return nil, errors.New("inf/NaN STL triangle vertex").WithTag("triangle", i)
		}
		if tri.IsDegenerate(1e-12) {
			continue
		}
		model = append(model, tri)
	}
	return model, nil
}

// LoadSTL reads an STL model into a single batch.
func LoadSTL(r io.Reader, albedo ms3.Vec) (*Mesh, error) {
	tris, err := ReadBinarySTL(r)
	if err != nil {
		return nil, err
	}
	m := &Mesh{}
	m.Add(voxelize.Batch{Triangles: tris, Albedo: albedo})
	return m, nil
}

func putVec(b []byte, v ms3.Vec) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}

func getVec(b []byte) ms3.Vec {
	_ = b[11] // early bounds check
	return ms3.Vec{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b)),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func badVec(v ms3.Vec) bool {
	return math32.IsNaN(v.X) || math32.IsInf(v.X, 0) ||
		math32.IsNaN(v.Y) || math32.IsInf(v.Y, 0) ||
		math32.IsNaN(v.Z) || math32.IsInf(v.Z, 0)
}
