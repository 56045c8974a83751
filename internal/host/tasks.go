package host

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/tickcore/internal/coroutine"
)

// TaskProxy starts coroutines on the current host and remembers every
// handle it issued, so they can be cancelled together when the host dies.
type TaskProxy struct {
	lifecycle *Lifecycle
	logger    *slog.Logger
	issued    []issued // start order
}

type issued struct {
	handle *coroutine.Handle
	host   *Host
}

// NewTaskProxy creates a proxy over l and registers it for host destruction.
func NewTaskProxy(l *Lifecycle, logger *slog.Logger) *TaskProxy {
	if logger == nil {
		logger = slog.Default()
	}
	p := &TaskProxy{lifecycle: l, logger: logger}
	l.OnHostDestroyed(p.cancelAll)
	return p
}

// Start runs routine on the current host, creating the host if the
// lifecycle allows it.
func (p *TaskProxy) Start(name string, routine coroutine.Routine) (*coroutine.Handle, error) {
	h, err := p.lifecycle.GetOrCreateHost()
	if err != nil {
		return nil, fmt.Errorf("start task %q: %w", name, err)
	}
	handle, err := h.StartTask(name, routine)
	if err != nil {
		return nil, fmt.Errorf("start task %q: %w", name, err)
	}
	p.prune()
	if handle.Valid() {
		p.issued = append(p.issued, issued{handle: handle, host: h})
	}
	return handle, nil
}

// Stop stops a task this proxy started. Stopping a finished task, or a
// handle from elsewhere, does nothing and returns false.
func (p *TaskProxy) Stop(handle *coroutine.Handle) bool {
	if !handle.Valid() {
		return false
	}
	i := slices.IndexFunc(p.issued, func(r issued) bool { return r.handle == handle })
	if i < 0 {
		return false
	}
	rec := p.issued[i]
	p.issued = slices.Delete(p.issued, i, i+1)
	return rec.host.StopTask(handle)
}

// Outstanding returns the handles of issued tasks still running, in start
// order.
func (p *TaskProxy) Outstanding() []*coroutine.Handle {
	p.prune()
	out := make([]*coroutine.Handle, 0, len(p.issued))
	for _, r := range p.issued {
		out = append(out, r.handle)
	}
	return out
}

// cancelAll force-stops every task issued on h. Cleanup code in those tasks
// may start new ones; those are kept.
func (p *TaskProxy) cancelAll(h *Host) {
	var doomed []*coroutine.Handle
	p.issued = slices.DeleteFunc(p.issued, func(r issued) bool {
		if r.host != h {
			return false
		}
		doomed = append(doomed, r.handle)
		return true
	})

	cancelled := 0
	for _, handle := range doomed {
		if h.cancelTask(handle) {
			cancelled++
		}
	}
	if cancelled > 0 {
		p.logger.Info("tasks cancelled", "host", h.ID(), "count", cancelled)
	}
}

func (p *TaskProxy) prune() {
	p.issued = slices.DeleteFunc(p.issued, func(r issued) bool {
		return !r.handle.Valid()
	})
}
