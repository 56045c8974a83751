package coroutine

import (
	"fmt"
	"time"

	"github.com/roach88/tickcore/internal/dispatch"
)

// Routine is the body of a cooperative task.
type Routine func(yield func(Wait) bool)

// WaitKind classifies a suspension.
type WaitKind int

const (
	// WaitTick resumes after the next Tick pass.
	WaitTick WaitKind = iota + 1
	// WaitFixedTick resumes after the next FixedTick pass.
	WaitFixedTick
	// WaitPostTick resumes after the next PostTick pass (end of frame).
	WaitPostTick
	// WaitFrames resumes after N Tick passes.
	WaitFrames
	// WaitDelay resumes once accumulated Tick deltas reach a duration.
	WaitDelay
	// WaitUntil resumes on the first Tick pass where a predicate holds.
	WaitUntil
)

// Wait is one suspension instruction yielded by a Routine.
// The zero Wait behaves like NextTick.
type Wait struct {
	kind  WaitKind
	n     int
	d     time.Duration
	until func() bool
}

// NextTick suspends until the next frame's Tick pass.
func NextTick() Wait { return Wait{kind: WaitTick} }

// NextFixedTick suspends until the next FixedTick pass.
func NextFixedTick() Wait { return Wait{kind: WaitFixedTick} }

// EndOfFrame suspends until the next PostTick pass.
func EndOfFrame() Wait { return Wait{kind: WaitPostTick} }

// Frames suspends for n Tick passes. n < 1 is treated as 1.
func Frames(n int) Wait {
	if n < 1 {
		n = 1
	}
	return Wait{kind: WaitFrames, n: n}
}

// Delay suspends until the Tick deltas seen since yielding add up to d.
func Delay(d time.Duration) Wait { return Wait{kind: WaitDelay, d: d} }

// Until suspends until pred returns true, checked once per Tick pass.
// A nil predicate resumes on the next Tick.
func Until(pred func() bool) Wait { return Wait{kind: WaitUntil, until: pred} }

// Kind returns the wait's kind, mapping the zero Wait to WaitTick.
func (w Wait) Kind() WaitKind {
	if w.kind == 0 {
		return WaitTick
	}
	return w.kind
}

// Channel returns the channel on which the wait is evaluated.
func (w Wait) Channel() dispatch.Channel {
	switch w.Kind() {
	case WaitFixedTick:
		return dispatch.FixedTick
	case WaitPostTick:
		return dispatch.PostTick
	default:
		return dispatch.Tick
	}
}

func (w Wait) String() string {
	switch w.Kind() {
	case WaitTick:
		return "next_tick"
	case WaitFixedTick:
		return "fixed_tick"
	case WaitPostTick:
		return "end_of_frame"
	case WaitFrames:
		return fmt.Sprintf("frames(%d)", w.n)
	case WaitDelay:
		return fmt.Sprintf("delay(%s)", w.d)
	case WaitUntil:
		return "until"
	default:
		return fmt.Sprintf("wait(%d)", int(w.kind))
	}
}
