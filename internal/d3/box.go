package d3

// Box is an axis aligned integer box. Min is inclusive, Max is exclusive.
type Box struct {
	Min, Max Vec3i
}

// NewBox creates a box with a given min corner and size.
func NewBox(min Vec3i, size Vec3i) Box {
	return Box{Min: min, Max: min.Add(size)}
}

// Cube creates a cubic box with side length extent.
func Cube(min Vec3i, extent int) Box {
	return NewBox(min, Elem(extent))
}

// Size returns the size of the box.
func (a Box) Size() Vec3i {
	return a.Max.Sub(a.Min)
}

// Empty returns true if the box contains no voxel.
func (a Box) Empty() bool {
	return a.Max[0] <= a.Min[0] || a.Max[1] <= a.Min[1] || a.Max[2] <= a.Min[2]
}

// Volume returns the number of voxels in the box.
func (a Box) Volume() int {
	if a.Empty() {
		return 0
	}
	sz := a.Size()
	return sz[0] * sz[1] * sz[2]
}

// Contains returns true if v lies inside the box.
func (a Box) Contains(v Vec3i) bool {
	return v[0] >= a.Min[0] && v[0] < a.Max[0] &&
		v[1] >= a.Min[1] && v[1] < a.Max[1] &&
		v[2] >= a.Min[2] && v[2] < a.Max[2]
}

// ContainsBox returns true if b is fully inside a. Empty boxes are always contained.
func (a Box) ContainsBox(b Box) bool {
	if b.Empty() {
		return true
	}
	return a.Contains(b.Min) && a.Contains(b.Max.AddScalar(-1))
}

// Intersect returns the intersection of two boxes. The result may be empty.
func (a Box) Intersect(b Box) Box {
	var r Box
	for i := 0; i < 3; i++ {
		r.Min[i] = max(a.Min[i], b.Min[i])
		r.Max[i] = min(a.Max[i], b.Max[i])
	}
	return r
}

// Grow extends the box by n voxels on every side.
func (a Box) Grow(n int) Box {
	return Box{Min: a.Min.AddScalar(-n), Max: a.Max.AddScalar(n)}
}

// ForEach calls fn for every voxel in the box in x-fastest order.
func (a Box) ForEach(fn func(v Vec3i)) {
	for z := a.Min[2]; z < a.Max[2]; z++ {
		for y := a.Min[1]; y < a.Max[1]; y++ {
			for x := a.Min[0]; x < a.Max[0]; x++ {
				fn(Vec3i{x, y, z})
			}
		}
	}
}
