package coroutine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcore/internal/dispatch"
)

type fixture struct {
	clock *dispatch.Clock
	sched *Scheduler
	log   []string
}

func newFixture() *fixture {
	clock := dispatch.NewClock()
	return &fixture{
		clock: clock,
		sched: NewScheduler(clock,
			WithIDGenerator(NewSequenceGenerator("task")),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
	}
}

// pass simulates one hub dispatch on ch followed by the scheduler's resume.
func (f *fixture) pass(ch dispatch.Channel, delta time.Duration) int {
	return f.sched.Resume(dispatch.Event{Channel: ch, Seq: f.clock.Next(), Delta: delta})
}

func (f *fixture) note(s string) { f.log = append(f.log, s) }

func TestScheduler_StartRunsToFirstYield(t *testing.T) {
	f := newFixture()

	h := f.sched.Start("greeter", func(yield func(Wait) bool) {
		f.note("a")
		if !yield(NextTick()) {
			return
		}
		f.note("b")
	})

	assert.Equal(t, []string{"a"}, f.log)
	assert.Equal(t, Running, h.State())
	assert.True(t, h.Valid())
	assert.Equal(t, "task-0001", h.ID())
	assert.Equal(t, "greeter", h.Name())

	assert.Equal(t, 1, f.pass(dispatch.Tick, 0))
	assert.Equal(t, []string{"a", "b"}, f.log)
	assert.Equal(t, Completed, h.State())
	assert.False(t, h.Valid())
	assert.Equal(t, 0, f.sched.Len())
}

func TestScheduler_CompletesWithoutYield(t *testing.T) {
	f := newFixture()

	h := f.sched.Start("instant", func(yield func(Wait) bool) {
		f.note("ran")
	})

	assert.Equal(t, Completed, h.State())
	assert.Equal(t, []string{"ran"}, f.log)
	assert.Empty(t, f.sched.Running())
}

func TestScheduler_NilRoutine(t *testing.T) {
	f := newFixture()
	h := f.sched.Start("nothing", nil)
	assert.Equal(t, Completed, h.State())
}

func TestScheduler_WaitsResumeOnTheirChannel(t *testing.T) {
	tests := []struct {
		name string
		wait Wait
		on   dispatch.Channel
	}{
		{"next tick", NextTick(), dispatch.Tick},
		{"zero wait", Wait{}, dispatch.Tick},
		{"fixed tick", NextFixedTick(), dispatch.FixedTick},
		{"end of frame", EndOfFrame(), dispatch.PostTick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			h := f.sched.Start(tt.name, func(yield func(Wait) bool) {
				yield(tt.wait)
			})

			for _, ch := range dispatch.Channels {
				if ch == tt.on {
					continue
				}
				assert.Equal(t, 0, f.pass(ch, time.Millisecond), "must not resume on %s", ch)
			}
			assert.Equal(t, Running, h.State())

			assert.Equal(t, 1, f.pass(tt.on, time.Millisecond))
			assert.Equal(t, Completed, h.State())
		})
	}
}

func TestScheduler_Frames(t *testing.T) {
	f := newFixture()
	h := f.sched.Start("wait3", func(yield func(Wait) bool) {
		yield(Frames(3))
	})

	f.pass(dispatch.Tick, 0)
	f.pass(dispatch.PostTick, 0)
	f.pass(dispatch.Tick, 0)
	assert.Equal(t, Running, h.State())

	f.pass(dispatch.Tick, 0)
	assert.Equal(t, Completed, h.State())
}

func TestScheduler_Delay(t *testing.T) {
	f := newFixture()
	h := f.sched.Start("delay", func(yield func(Wait) bool) {
		yield(Delay(50 * time.Millisecond))
	})

	f.pass(dispatch.Tick, 20*time.Millisecond)
	f.pass(dispatch.FixedTick, 20*time.Millisecond) // fixed steps do not count
	f.pass(dispatch.Tick, 20*time.Millisecond)
	assert.Equal(t, Running, h.State())

	f.pass(dispatch.Tick, 20*time.Millisecond)
	assert.Equal(t, Completed, h.State())
}

func TestScheduler_Until(t *testing.T) {
	f := newFixture()
	ready := false
	h := f.sched.Start("until", func(yield func(Wait) bool) {
		yield(Until(func() bool { return ready }))
	})

	f.pass(dispatch.Tick, 0)
	assert.Equal(t, Running, h.State())

	ready = true
	f.pass(dispatch.Tick, 0)
	assert.Equal(t, Completed, h.State())
}

func TestScheduler_StopRunsDeferredCleanup(t *testing.T) {
	f := newFixture()
	h := f.sched.Start("looper", func(yield func(Wait) bool) {
		defer f.note("cleanup")
		for {
			if !yield(NextTick()) {
				f.note("yield returned false")
				return
			}
			f.note("tick")
		}
	})

	f.pass(dispatch.Tick, 0)
	require.True(t, f.sched.Stop(h))

	assert.Equal(t, []string{"tick", "yield returned false", "cleanup"}, f.log)
	assert.Equal(t, Stopped, h.State())
	assert.False(t, f.sched.Stop(h), "stopping an invalid handle is a no-op")

	f.pass(dispatch.Tick, 0)
	assert.Equal(t, []string{"tick", "yield returned false", "cleanup"}, f.log)
}

func TestScheduler_SelfStopTakesEffectAtNextYield(t *testing.T) {
	f := newFixture()
	var h *Handle
	h = f.sched.Start("self", func(yield func(Wait) bool) {
		defer f.note("cleanup")
		if !yield(NextTick()) {
			return
		}
		f.sched.Stop(h)
		f.note("still running")
		if !yield(NextTick()) {
			f.note("yield returned false")
			return
		}
		f.note("unreachable")
	})

	f.pass(dispatch.Tick, 0)

	assert.Equal(t, []string{"still running", "yield returned false", "cleanup"}, f.log)
	assert.Equal(t, Stopped, h.State())
	assert.Equal(t, 0, f.sched.Len())
}

func TestScheduler_StartedDuringPassWaitsForNextPass(t *testing.T) {
	f := newFixture()

	// A listener on this pass starts a task before the scheduler resumes.
	seq := f.clock.Next()
	h := f.sched.Start("late", func(yield func(Wait) bool) {
		yield(NextTick())
		f.note("resumed")
	})
	f.sched.Resume(dispatch.Event{Channel: dispatch.Tick, Seq: seq})
	assert.Empty(t, f.log, "task yielded during this pass")

	f.pass(dispatch.Tick, 0)
	assert.Equal(t, []string{"resumed"}, f.log)
	assert.Equal(t, Completed, h.State())
}

func TestScheduler_ResumeOrderIsStartOrder(t *testing.T) {
	f := newFixture()
	for _, name := range []string{"first", "second", "third"} {
		f.sched.Start(name, func(yield func(Wait) bool) {
			yield(NextTick())
			f.note(name)
		})
	}

	assert.Equal(t, 3, f.pass(dispatch.Tick, 0))
	assert.Equal(t, []string{"first", "second", "third"}, f.log)
}

func TestScheduler_StopAll(t *testing.T) {
	f := newFixture()
	a := f.sched.Start("a", func(yield func(Wait) bool) {
		defer f.note("a cleanup")
		yield(NextTick())
	})
	b := f.sched.Start("b", func(yield func(Wait) bool) {
		defer f.note("b cleanup")
		yield(EndOfFrame())
	})
	done := f.sched.Start("done", func(yield func(Wait) bool) {})

	stopped := f.sched.StopAll(Cancelled)

	assert.Equal(t, []*Handle{a, b}, stopped)
	assert.Equal(t, Cancelled, a.State())
	assert.Equal(t, Cancelled, b.State())
	assert.Equal(t, Completed, done.State(), "terminal handles keep their state")
	assert.Equal(t, []string{"a cleanup", "b cleanup"}, f.log)
	assert.Equal(t, 0, f.sched.Len())
}

func TestScheduler_StopAllRejectsNonTerminalState(t *testing.T) {
	f := newFixture()
	h := f.sched.Start("a", func(yield func(Wait) bool) { yield(NextTick()) })

	f.sched.StopAll(Running)
	assert.Equal(t, Stopped, h.State())
}

func TestScheduler_FaultIsolated(t *testing.T) {
	f := newFixture()
	bad := f.sched.Start("bad", func(yield func(Wait) bool) {
		yield(NextTick())
		panic("boom")
	})
	good := f.sched.Start("good", func(yield func(Wait) bool) {
		yield(NextTick())
		f.note("good")
	})

	assert.Equal(t, 2, f.pass(dispatch.Tick, 0))

	assert.Equal(t, Faulted, bad.State())
	require.Error(t, bad.Err())
	assert.Contains(t, bad.Err().Error(), "panic: boom")
	assert.Equal(t, Completed, good.State())
	assert.Equal(t, []string{"good"}, f.log)
}

func TestScheduler_FaultInFirstSegment(t *testing.T) {
	f := newFixture()
	h := f.sched.Start("early", func(yield func(Wait) bool) {
		panic("before first yield")
	})

	assert.Equal(t, Faulted, h.State())
	assert.Equal(t, 0, f.sched.Len())
}

func TestScheduler_StopForeignHandle(t *testing.T) {
	f := newFixture()
	other := newFixture()
	h := other.sched.Start("foreign", func(yield func(Wait) bool) { yield(NextTick()) })

	assert.False(t, f.sched.Stop(h))
	assert.False(t, f.sched.Stop(nil))
	assert.Equal(t, Running, h.State())
}

func TestScheduler_StopSiblingFromRoutine(t *testing.T) {
	f := newFixture()
	victim := f.sched.Start("victim", func(yield func(Wait) bool) {
		defer f.note("victim cleanup")
		for yield(NextTick()) {
			f.note("victim tick")
		}
	})
	f.sched.Start("killer", func(yield func(Wait) bool) {
		yield(NextTick())
		f.sched.Stop(victim)
		f.note("killer done")
	})

	f.pass(dispatch.Tick, 0)

	assert.Equal(t, []string{"victim tick", "victim cleanup", "killer done"}, f.log)
	assert.Equal(t, Stopped, victim.State())
}
