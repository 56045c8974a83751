package coroutine

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/tickcore/internal/diag"
	"github.com/roach88/tickcore/internal/dispatch"
)

// Scheduler owns the cooperative tasks of one host.
//
// Scheduler is not safe for concurrent use. Start, Stop and Resume must all
// be called from the dispatch goroutine, including from inside listeners and
// routines.
type Scheduler struct {
	clock  *dispatch.Clock
	ids    IDGenerator
	logger *slog.Logger
	tasks  []*task // start order
}

// task is the scheduler-side state behind a Handle.
type task struct {
	owner  *Scheduler
	handle *Handle
	next   func() (Wait, bool)
	stop   func()

	wait     Wait
	armedAt  int64 // clock value when the current wait was armed
	frames   int
	elapsed  time.Duration
	running  bool // routine body is on the stack
	teardown bool // stop requested while running
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithIDGenerator sets the handle id generator. Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) SchedulerOption {
	return func(s *Scheduler) {
		s.ids = ids
	}
}

// WithLogger sets the logger used for faulted tasks. Default: slog.Default().
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler that reads dispatch order from clock.
// The clock must be the one stamping the events later passed to Resume.
func NewScheduler(clock *dispatch.Clock, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = dispatch.NewClock()
	}
	if s.ids == nil {
		s.ids = UUIDv7Generator{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start runs routine up to its first yield and returns its handle.
// A routine that returns without yielding comes back already Completed.
func (s *Scheduler) Start(name string, routine Routine) *Handle {
	h := &Handle{id: s.ids.Generate(), name: name, state: Running}
	if routine == nil {
		h.state = Completed
		return h
	}

	next, stop := iter.Pull(iter.Seq[Wait](routine))
	t := &task{owner: s, handle: h, next: next, stop: stop}
	h.task = t

	diag.Debug(s.logger, "task started", "task", name, "id", h.id)

	s.advance(t)
	if h.state == Running {
		s.tasks = append(s.tasks, t)
	}
	return h
}

// Stop stops the task behind h. Returns false if h is invalid or belongs to
// another scheduler.
//
// A task stopping itself from its own body keeps running until its next
// yield, where it is torn down.
func (s *Scheduler) Stop(h *Handle) bool {
	return s.Terminate(h, Stopped)
}

// Terminate is Stop with an explicit terminal state, used by owners that
// need to tell a cancellation apart from a user stop.
func (s *Scheduler) Terminate(h *Handle, state State) bool {
	if !s.owns(h) {
		return false
	}
	if !state.Terminal() {
		state = Stopped
	}
	s.terminate(h.task, state)
	s.compact()
	return true
}

// StopAll terminates every running task with the given terminal state and
// returns their handles in start order.
func (s *Scheduler) StopAll(state State) []*Handle {
	if !state.Terminal() {
		state = Stopped
	}
	var stopped []*Handle
	for _, t := range slices.Clone(s.tasks) {
		if t.handle.state != Running {
			continue
		}
		s.terminate(t, state)
		stopped = append(stopped, t.handle)
	}
	s.compact()
	return stopped
}

// Resume advances every task whose wait is satisfied by ev.
// Tasks are visited in start order over a snapshot, so tasks started during
// the pass wait for a later one. Returns the number of tasks resumed.
func (s *Scheduler) Resume(ev dispatch.Event) int {
	resumed := 0
	for _, t := range slices.Clone(s.tasks) {
		if t.handle.state != Running || !t.ready(ev) {
			continue
		}
		resumed++
		diag.Debug(s.logger, "task resumed",
			"task", t.handle.name,
			"id", t.handle.id,
			"channel", ev.Channel.String(),
			"seq", ev.Seq,
		)
		s.advance(t)
	}
	s.compact()
	return resumed
}

// Running returns handles of tasks that have not reached a terminal state.
func (s *Scheduler) Running() []*Handle {
	var out []*Handle
	for _, t := range s.tasks {
		if t.handle.state == Running {
			out = append(out, t.handle)
		}
	}
	return out
}

// Len returns the number of running tasks.
func (s *Scheduler) Len() int {
	return len(s.Running())
}

func (s *Scheduler) owns(h *Handle) bool {
	return h.Valid() && h.task != nil && h.task.owner == s
}

// advance resumes t once and re-arms or retires it.
func (s *Scheduler) advance(t *task) {
	w, ok, fault := s.pull(t)

	switch {
	case fault != nil:
		t.handle.state = Faulted
		t.handle.err = fault
		s.logger.Error("task faulted",
			"task", t.handle.name,
			"id", t.handle.id,
			"error", fault,
		)
	case !ok:
		if t.handle.state == Running {
			t.handle.state = Completed
		}
		diag.Debug(s.logger, "task finished", "task", t.handle.name, "state", t.handle.state.String())
	case t.teardown:
		s.halt(t)
	default:
		t.arm(w, s.clock.Current())
	}
}

// pull runs the routine body until its next yield, recovering panics.
func (s *Scheduler) pull(t *task) (w Wait, ok bool, fault error) {
	t.running = true
	defer func() {
		t.running = false
		if r := recover(); r != nil {
			fault = fmt.Errorf("panic: %v", r)
		}
	}()
	w, ok = t.next()
	return w, ok, nil
}

// terminate moves t to a terminal state and tears it down, deferring the
// teardown to the next yield if the body is on the stack.
func (s *Scheduler) terminate(t *task, state State) {
	t.handle.state = state
	if t.running {
		t.teardown = true
		return
	}
	s.halt(t)
}

// halt unwinds a suspended routine: its pending yield returns false and its
// deferred calls run. Panics during unwinding are logged, not propagated.
func (s *Scheduler) halt(t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked while stopping",
				"task", t.handle.name,
				"id", t.handle.id,
				"panic", r,
			)
		}
	}()
	t.teardown = false
	t.stop()
}

// compact drops terminal tasks from the run list.
func (s *Scheduler) compact() {
	s.tasks = slices.DeleteFunc(s.tasks, func(t *task) bool {
		return t.handle.state != Running
	})
}

func (t *task) arm(w Wait, now int64) {
	t.wait = w
	t.armedAt = now
	t.frames = w.n
	t.elapsed = 0
}

// ready reports whether ev satisfies the current wait, updating frame and
// delay counters as Tick passes go by.
func (t *task) ready(ev dispatch.Event) bool {
	if ev.Seq <= t.armedAt || ev.Channel != t.wait.Channel() {
		return false
	}
	switch t.wait.Kind() {
	case WaitFrames:
		t.frames--
		return t.frames <= 0
	case WaitDelay:
		t.elapsed += ev.Delta
		return t.elapsed >= t.wait.d
	case WaitUntil:
		return t.wait.until == nil || t.wait.until()
	default:
		return true
	}
}
