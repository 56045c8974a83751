package coroutine

import "fmt"

// State is the lifecycle state of a task.
type State int

const (
	// Running tasks are suspended at a yield or currently executing.
	Running State = iota + 1
	// Completed tasks returned from their routine.
	Completed
	// Stopped tasks were stopped by their owner.
	Stopped
	// Cancelled tasks were force-stopped because their host was destroyed.
	Cancelled
	// Faulted tasks panicked.
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	case Cancelled:
		return "cancelled"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s != Running
}

// Handle identifies one task started on a Scheduler.
//
// A handle is valid only while its task is Running. Once the task completes,
// is stopped, is cancelled, or faults, the handle stays readable but every
// operation on it is a no-op.
type Handle struct {
	id    string
	name  string
	state State
	err   error
	task  *task
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

// Name returns the diagnostic name given at Start.
func (h *Handle) Name() string { return h.name }

// State returns the task's current state.
func (h *Handle) State() State { return h.state }

// Valid reports whether the task is still running.
func (h *Handle) Valid() bool { return h != nil && h.state == Running }

// Err returns the fault for Faulted tasks, nil otherwise.
func (h *Handle) Err() error { return h.err }

func (h *Handle) String() string {
	return fmt.Sprintf("%s[%s] %s", h.name, h.id, h.state)
}
