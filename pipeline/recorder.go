package pipeline

import (
	"context"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Resource is a cache volume read or written by recorded commands.
type Resource uint8

const (
	Opacity Resource = iota
	Radiance
	numResources
)

func (r Resource) String() string {
	switch r {
	case Opacity:
		return "opacity"
	case Radiance:
		return "radiance"
	}
	return "resource(" + strconv.Itoa(int(r)) + ")"
}

// Access is how a command uses a resource.
type Access uint8

const (
	Read Access = 1 << iota
	Write
	ReadWrite = Read | Write
)

// Hazard is the data hazard a barrier resolves.
type Hazard uint8

const (
	ReadAfterWrite Hazard = iota + 1
	WriteAfterWrite
	WriteAfterRead
)

func (h Hazard) String() string {
	switch h {
	case ReadAfterWrite:
		return "RAW"
	case WriteAfterWrite:
		return "WAW"
	case WriteAfterRead:
		return "WAR"
	}
	return "none"
}

// Barrier orders the accesses of two commands to the same resource.
type Barrier struct {
	Resource Resource
	// After is the stage whose access must complete.
	After Kind
	// Before is the stage that waits.
	Before Kind
	Hazard Hazard
}

// Use declares a command's access to one resource.
type Use struct {
	Resource Resource
	Access   Access
}

// Command is a recorded unit of work.
type Command struct {
	Kind  Kind
	Level int
	Uses  []Use
	// Barriers are issued before the command runs.
	Barriers []Barrier
	run      func() error
}

type lastAccess struct {
	kind   Kind
	access Access
	ok     bool
}

// Fencer is implemented by kernels that must be told when a barrier is
// crossed, typically GPU backends issuing memory barriers.
type Fencer interface {
	MemoryBarrier()
}

// Recorder records the commands of a frame onto a single ordered stream and
// inserts a barrier between accesses of a resource that conflict.
type Recorder struct {
	cmds []Command
	last [numResources]lastAccess
}

// Record appends a command. Barriers against previously recorded commands are
// derived from uses.
func (r *Recorder) Record(kind Kind, level int, run func() error, uses ...Use) {
	cmd := Command{Kind: kind, Level: level, Uses: uses, run: run}
	for _, u := range uses {
		prev := &r.last[u.Resource]
		if prev.ok {
			if h := hazard(prev.kind, prev.access, kind, u.Access); h != 0 {
				cmd.Barriers = append(cmd.Barriers, Barrier{
					Resource: u.Resource,
					After:    prev.kind,
					Before:   kind,
					Hazard:   h,
				})
			}
		}
		*prev = lastAccess{kind: kind, access: u.Access, ok: true}
	}
	r.cmds = append(r.cmds, cmd)
}

// hazard returns the hazard between two consecutive accesses or zero if none
// needs a barrier. Writes of the same stage touch disjoint texels and are not ordered.
func hazard(prevKind Kind, prev Access, kind Kind, cur Access) Hazard {
	switch {
	case prev&Write != 0 && cur&Read != 0:
		return ReadAfterWrite
	case prevKind == kind:
		return 0
	case prev&Write != 0 && cur&Write != 0:
		return WriteAfterWrite
	case prev&Read != 0 && cur&Write != 0:
		return WriteAfterRead
	}
	return 0
}

// Commands returns the recorded commands in submission order.
func (r *Recorder) Commands() []Command { return r.cmds }

// Barriers returns every recorded barrier in submission order.
func (r *Recorder) Barriers() []Barrier {
	var barriers []Barrier
	for _, c := range r.cmds {
		barriers = append(barriers, c.Barriers...)
	}
	return barriers
}

// Len returns the number of recorded commands.
func (r *Recorder) Len() int { return len(r.cmds) }

// Reset discards recorded commands so the recorder can be reused.
func (r *Recorder) Reset() {
	r.cmds = r.cmds[:0]
	r.last = [numResources]lastAccess{}
}

// Submit runs the recorded commands in order. ctx is only checked before the
// first command: once started the stream runs to completion unless a
// command fails, in which case the remaining commands are not run.
func (r *Recorder) Submit(ctx context.Context, fence Fencer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range r.cmds {
		cmd := &r.cmds[i]
		if fence != nil && len(cmd.Barriers) > 0 {
			fence.MemoryBarrier()
		}
		if err := cmd.run(); err != nil {
			return errors.New("pipeline command failed").
				WithTag("stage", cmd.Kind).
				WithTag("level", cmd.Level).
				WithTag("index", i).
				Wrap(err)
		}
	}
	return nil
}
