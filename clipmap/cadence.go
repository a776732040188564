package clipmap

// Cadence decides which clip levels are updated on a given frame.
// Level L updates on frames where frame mod 2^L == 0, so level 0 updates
// every frame and the coarsest level once every 2^(Levels-1) frames.
type Cadence struct {
	Levels int
}

// Due returns true if the level is updated on the given frame.
func (c Cadence) Due(frame uint64, level int) bool {
	if level < 0 || level >= c.Levels {
		return false
	}
	period := uint64(1) << level
	return frame&(period-1) == 0
}

// DueLevels appends the levels due on frame to dst in increasing order.
func (c Cadence) DueLevels(dst []int, frame uint64) []int {
	for lvl := 0; lvl < c.Levels; lvl++ {
		if c.Due(frame, lvl) {
			dst = append(dst, lvl)
		}
	}
	return dst
}

// Period returns the number of frames in one full cadence cycle.
func (c Cadence) Period() uint64 {
	return uint64(1) << (c.Levels - 1)
}
