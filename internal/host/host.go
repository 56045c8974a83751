package host

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
)

// DefaultName is the name given to hosts created by a Lifecycle.
const DefaultName = "[Core]"

// Driver is the set of callbacks the engine delivers to a live host.
//
// Within one frame the engine calls OnFixedTick zero or more times, then
// OnTick once, then OnPostTick once. OnDestroy is called once when the
// engine tears the host down.
type Driver interface {
	OnFixedTick(step time.Duration)
	OnTick(delta time.Duration)
	OnPostTick()
	OnDestroy()
}

// Host is the engine object that forwards driver callbacks to the hub.
//
// Host is not safe for concurrent use; the engine calls it from the
// dispatch goroutine only.
type Host struct {
	id         string
	name       string
	persistent bool
	hidden     bool
	destroyed  bool

	hub       *dispatch.Hub
	scheduler *coroutine.Scheduler
	logger    *slog.Logger
	onDestroy func(*Host)

	frame uint64 // completed Tick passes
	step  int    // fixed steps seen since the last Tick
}

var _ Driver = (*Host)(nil)

// HostOption configures a Host.
type HostOption func(*Host)

// Persistent marks the host as surviving scene unloads.
func Persistent() HostOption {
	return func(h *Host) {
		h.persistent = true
	}
}

// Hidden marks the host as invisible to editors and inspectors.
func Hidden() HostOption {
	return func(h *Host) {
		h.hidden = true
	}
}

// NewHost creates an unbound host. It does nothing on driver callbacks until
// a Lifecycle binds it to a hub.
func NewHost(id, name string, opts ...HostOption) *Host {
	h := &Host{id: id, name: name}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ID returns the host id.
func (h *Host) ID() string { return h.id }

// Name returns the host name.
func (h *Host) Name() string { return h.name }

// IsPersistent reports whether the host survives scene unloads.
func (h *Host) IsPersistent() bool { return h.persistent }

// IsHidden reports whether the host is hidden.
func (h *Host) IsHidden() bool { return h.hidden }

// Alive reports whether the host has not been destroyed.
func (h *Host) Alive() bool { return h != nil && !h.destroyed }

// Bound reports whether the host forwards callbacks to a hub.
func (h *Host) Bound() bool { return h.hub != nil }

// Frame returns the number of Tick passes the host has driven.
func (h *Host) Frame() uint64 { return h.frame }

// Scheduler returns the host's coroutine scheduler, nil until bound.
func (h *Host) Scheduler() *coroutine.Scheduler { return h.scheduler }

func (h *Host) String() string {
	return fmt.Sprintf("%s(%s)", h.name, h.id)
}

// bind attaches the host to hub. A host rebound to the hub it already drives
// keeps its scheduler and running tasks. Moving to another hub cancels the
// old tasks and switches to scheduler, which runs on the new hub's clock.
func (h *Host) bind(hub *dispatch.Hub, scheduler *coroutine.Scheduler, logger *slog.Logger, onDestroy func(*Host)) {
	if h.scheduler == nil || h.hub != hub {
		if h.scheduler != nil {
			h.scheduler.StopAll(coroutine.Cancelled)
		}
		h.scheduler = scheduler
	}
	h.hub = hub
	h.logger = logger
	h.onDestroy = onDestroy
}

// OnFixedTick dispatches one FixedTick pass. Fixed steps belong to the frame
// about to be ticked.
func (h *Host) OnFixedTick(step time.Duration) {
	if !h.active() {
		return
	}
	r := h.hub.DispatchFixedTick(dispatch.Event{Frame: h.frame + 1, Step: h.step, Delta: step})
	h.step++
	h.scheduler.Resume(r.Event)
}

// OnTick dispatches the frame's Tick pass.
func (h *Host) OnTick(delta time.Duration) {
	if !h.active() {
		return
	}
	h.frame++
	h.step = 0
	r := h.hub.DispatchTick(dispatch.Event{Frame: h.frame, Delta: delta})
	h.scheduler.Resume(r.Event)
}

// OnPostTick dispatches the frame's PostTick pass.
func (h *Host) OnPostTick() {
	if !h.active() {
		return
	}
	r := h.hub.DispatchPostTick(dispatch.Event{Frame: h.frame})
	h.scheduler.Resume(r.Event)
}

// OnDestroy marks the host destroyed, notifies its lifecycle and cancels
// every task still running on it. Later calls are no-ops.
func (h *Host) OnDestroy() {
	if h.destroyed {
		return
	}
	h.destroyed = true
	if h.onDestroy != nil {
		h.onDestroy(h)
	}
	if h.scheduler != nil {
		h.scheduler.StopAll(coroutine.Cancelled)
	}
}

// StartTask starts routine on this host.
func (h *Host) StartTask(name string, routine coroutine.Routine) (*coroutine.Handle, error) {
	if !h.active() {
		return nil, NewNoHostError("host destroyed or unbound", h.id)
	}
	return h.scheduler.Start(name, routine), nil
}

// StopTask stops a task started on this host. Returns false for handles that
// are already finished or belong elsewhere.
func (h *Host) StopTask(handle *coroutine.Handle) bool {
	if h.scheduler == nil {
		return false
	}
	return h.scheduler.Stop(handle)
}

func (h *Host) cancelTask(handle *coroutine.Handle) bool {
	if h.scheduler == nil {
		return false
	}
	return h.scheduler.Terminate(handle, coroutine.Cancelled)
}

func (h *Host) active() bool {
	return !h.destroyed && h.hub != nil
}
