package scene

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/soypat/clipgi/inject"
	"github.com/soypat/clipgi/voxelize"
	"github.com/soypat/glgl/math/ms3"
	"github.com/stretchr/testify/require"
)

func TestBoxNormalsPointOutward(t *testing.T) {
	box := ms3.Box{Min: ms3.Vec{X: -1, Y: 0, Z: 2}, Max: ms3.Vec{X: 1, Y: 3, Z: 3}}
	b := NewBox(box, White)
	require.Len(t, b.Triangles, 12)
	c := box.Center()
	for _, tri := range b.Triangles {
		centroid := ms3.Scale(1.0/3, ms3.Add(tri[0], ms3.Add(tri[1], tri[2])))
		require.Greater(t, ms3.Dot(tri.Normal(), ms3.Sub(centroid, c)), float32(0), tri)
	}
}

func TestCornellBox(t *testing.T) {
	m := CornellBox(4)
	require.Equal(t, 5*2+2*12, m.Triangles())
	bb := m.Bounds()
	require.Equal(t, ms3.Vec{X: -2, Y: -2, Z: -2}, bb.Min)
	require.Equal(t, ms3.Vec{X: 2, Y: 2, Z: 2}, bb.Max)

	// Walls face the inside of the room.
	var batches int
	m.Draw(func(b *voxelize.Batch) {
		if batches < 5 {
			n := ms3.Unit(b.Triangles[0].Normal())
			centroid := ms3.Scale(1.0/3, ms3.Add(b.Triangles[0][0], ms3.Add(b.Triangles[0][1], b.Triangles[0][2])))
			require.Less(t, ms3.Dot(n, centroid), float32(0))
		}
		batches++
	})
	require.Equal(t, 7, batches)
	require.Equal(t, ms3.Box{}, (&Mesh{}).Bounds())
}

func TestSTLRoundTrip(t *testing.T) {
	box := NewBox(ms3.Box{Max: ms3.Vec{X: 1, Y: 2, Z: 3}}, White)
	var buf bytes.Buffer
	n, err := WriteBinarySTL(&buf, box.Triangles)
	require.NoError(t, err)
	require.Equal(t, stlHeaderSize+12*stlTriangleSize, n)

	got, err := ReadBinarySTL(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, box.Triangles, got)

	m, err := LoadSTL(bytes.NewReader(buf.Bytes()), Red)
	require.NoError(t, err)
	require.Equal(t, 12, m.Triangles())
	require.Equal(t, Red, m.Batches[0].Albedo)

	_, err = ReadBinarySTL(bytes.NewReader(buf.Bytes()[:stlHeaderSize+75]))
	require.Error(t, err)
	_, err = ReadBinarySTL(bytes.NewReader(make([]byte, stlHeaderSize)))
	require.Error(t, err)
	_, err = WriteBinarySTL(&buf, nil)
	require.Error(t, err)
}

func TestReadSTLHugeCount(t *testing.T) {
	header := make([]byte, stlHeaderSize)
	binary.LittleEndian.PutUint32(header[80:], math.MaxUint32)
	_, err := ReadBinarySTL(bytes.NewReader(header))
	require.ErrorContains(t, err, "reading STL triangle failed")

	// One stored triangle of many claimed.
	var buf bytes.Buffer
	_, err = WriteBinarySTL(&buf, NewBox(ms3.Box{Max: ms3.Vec{X: 1, Y: 1, Z: 1}}, White).Triangles[:1])
	require.NoError(t, err)
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[80:], stlMaxPrealloc+1)
	_, err = ReadBinarySTL(bytes.NewReader(data))
	require.ErrorContains(t, err, "reading STL triangle failed")
}

func TestPath(t *testing.T) {
	p := Path{Points: []ms3.Vec{{}, {X: 10}, {X: 10, Y: 10}}}
	want := []ms3.Vec{{}, {X: 5}, {X: 10}, {X: 10, Y: 5}, {X: 10, Y: 10}}
	for frame, w := range want {
		require.Equal(t, w, p.At(frame, len(want)).Origin(), frame)
	}
	require.Equal(t, ms3.Vec{X: 10, Y: 10}, p.At(9, 5).Origin())
	require.Equal(t, ms3.Vec{}, Path{}.At(3, 5).Origin())
}

// floorWithBlocker is a 4x4 floor at y=-1 with a small box floating above its center.
func floorWithBlocker() *Mesh {
	m := &Mesh{}
	m.Add(
		NewQuad(ms3.Vec{Y: -1}, ms3.Vec{Z: 2}, ms3.Vec{X: 2}, White),
		NewBox(ms3.Box{Min: ms3.Vec{X: -0.5, Y: 0, Z: -0.5}, Max: ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5}}, White),
	)
	return m
}

func TestRenderShadowMap(t *testing.T) {
	m := floorWithBlocker()
	bounds := ms3.Box{Min: ms3.Vec{X: -2, Y: -2, Z: -2}, Max: ms3.Vec{X: 2, Y: 2, Z: 2}}
	light := inject.NewDirectionalLight(ms3.Vec{Y: -1}, ms3.Vec{X: 1, Y: 1, Z: 1}, 2, bounds)
	sm := RenderShadowMap(m, light, 64)
	require.Same(t, sm, light.Shadow)

	up := ms3.Vec{Y: 1}
	require.Equal(t, ms3.Vec{}, light.Irradiance(ms3.Vec{X: 0.1, Y: -1, Z: 0.1}, up))
	require.Equal(t, ms3.Vec{X: 2, Y: 2, Z: 2}, light.Irradiance(ms3.Vec{X: 1.5, Y: -1, Z: 1.5}, up))
	// The top of the blocker is lit.
	require.Equal(t, ms3.Vec{X: 2, Y: 2, Z: 2}, light.Irradiance(ms3.Vec{X: 0.1, Y: 0.5, Z: 0.1}, up))
}

func TestRenderGBuffer(t *testing.T) {
	m := &Mesh{}
	m.Add(NewQuad(ms3.Vec{Y: -1}, ms3.Vec{Z: 2}, ms3.Vec{X: 2}, Green))
	bounds := ms3.Box{Min: ms3.Vec{X: -2, Y: -2, Z: -2}, Max: ms3.Vec{X: 2, Y: 2, Z: 2}}
	light := inject.NewDirectionalLight(ms3.Vec{Y: -1}, ms3.Vec{X: 1, Y: 1, Z: 1}, 1, bounds)
	view := Viewpoint{Position: ms3.Vec{Y: 2, Z: 2}, Target: ms3.Vec{Y: -1}}
	const w, h = 32, 24
	g := RenderGBuffer(m, view, light, w, h)

	center := h/2*w + w/2
	require.InDelta(t, 1, g.Normal[center].Y, 1e-5)
	require.InDelta(t, -1, g.Position[center].Y, 1e-3)
	require.InDelta(t, 0, g.Position[center].X, 0.2)
	require.Equal(t, Green, g.Albedo[center])
	require.InDelta(t, Green.Y, g.Direct[center].Y, 1e-5)

	// The far top corner looks past the floor.
	require.Equal(t, ms3.Vec{}, g.Normal[0])
}
