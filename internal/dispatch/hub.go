package dispatch

import (
	"log/slog"

	"github.com/roach88/tickcore/internal/diag"
)

// Hub owns one SubscriptionSet per channel and fans out dispatches to them.
//
// Hub is driven exclusively by the host's driver callbacks; application code
// only sees the Subscriptions views returned by OnTick, OnFixedTick and
// OnPostTick.
type Hub struct {
	sets   [3]SubscriptionSet
	clock  *Clock
	logger *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger used for listener failures.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithClock sets the logical clock that stamps Event.Seq.
// Sharing a clock lets other components interleave their own sequence
// numbers with dispatch passes.
func WithClock(clock *Clock) HubOption {
	return func(h *Hub) {
		h.clock = clock
	}
}

// NewHub creates a hub with three empty channels.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{}
	for _, opt := range opts {
		opt(h)
	}
	if h.clock == nil {
		h.clock = NewClock()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Clock returns the hub's logical clock.
func (h *Hub) Clock() *Clock {
	return h.clock
}

// On returns the subscription view for ch.
// Panics on an undefined channel; channels are compile-time constants.
func (h *Hub) On(ch Channel) Subscriptions {
	return Subscriptions{set: h.set(ch), channel: ch}
}

// OnTick returns the per-frame subscription view.
func (h *Hub) OnTick() Subscriptions { return h.On(Tick) }

// OnFixedTick returns the fixed-step subscription view.
func (h *Hub) OnFixedTick() Subscriptions { return h.On(FixedTick) }

// OnPostTick returns the post-frame subscription view.
func (h *Hub) OnPostTick() Subscriptions { return h.On(PostTick) }

// DispatchTick runs one Tick pass.
func (h *Hub) DispatchTick(ev Event) DispatchResult { return h.Dispatch(Tick, ev) }

// DispatchFixedTick runs one FixedTick pass.
func (h *Hub) DispatchFixedTick(ev Event) DispatchResult { return h.Dispatch(FixedTick, ev) }

// DispatchPostTick runs one PostTick pass.
func (h *Hub) DispatchPostTick(ev Event) DispatchResult { return h.Dispatch(PostTick, ev) }

// Dispatch runs one pass on ch. The event's Channel and Seq are stamped by
// the hub. Listener failures are logged and returned, never propagated.
func (h *Hub) Dispatch(ch Channel, ev Event) DispatchResult {
	set := h.set(ch)
	ev.Channel = ch
	ev.Seq = h.clock.Next()

	diag.Debug(h.logger, "dispatching",
		"channel", ch.String(),
		"frame", ev.Frame,
		"step", ev.Step,
		"seq", ev.Seq,
		"listeners", set.Len(),
	)

	result := set.Dispatch(ev)
	for _, failure := range result.Failures {
		h.logger.Error("listener failed",
			"listener", failure.Listener.Name(),
			"channel", ch.String(),
			"frame", ev.Frame,
			"seq", ev.Seq,
			"panic", failure.Panicked(),
			"error", failure.Err,
		)
	}
	return result
}

// Len returns the number of listeners on ch.
func (h *Hub) Len(ch Channel) int {
	return h.set(ch).Len()
}

// Clear removes every listener from every channel.
func (h *Hub) Clear() {
	for i := range h.sets {
		h.sets[i].Clear()
	}
}

func (h *Hub) set(ch Channel) *SubscriptionSet {
	if !ch.Valid() {
		panic("dispatch: invalid channel " + ch.String())
	}
	return &h.sets[ch.index()]
}

// Subscriptions is the application-facing view of one channel.
// It can add and remove listeners but cannot dispatch.
type Subscriptions struct {
	set     *SubscriptionSet
	channel Channel
}

// Channel returns the channel this view subscribes to.
func (s Subscriptions) Channel() Channel {
	return s.channel
}

// Subscribe adds l, moving it to the end if it is already present.
func (s Subscriptions) Subscribe(l *Listener) {
	s.set.Subscribe(l)
}

// Unsubscribe removes l. Absent listeners are ignored.
func (s Subscriptions) Unsubscribe(l *Listener) {
	s.set.Unsubscribe(l)
}

// Contains reports whether l is subscribed.
func (s Subscriptions) Contains(l *Listener) bool {
	return s.set.Contains(l)
}

// Len returns the number of listeners on the channel.
func (s Subscriptions) Len() int {
	return s.set.Len()
}

// SubscribeOnce subscribes a wrapper that removes itself and then calls l.
// When removeOthers is true the channel is cleared first.
//
// The returned wrapper is the subscribed identity; unsubscribe it to cancel
// before it fires.
func (s Subscriptions) SubscribeOnce(l *Listener, removeOthers bool) *Listener {
	if l == nil {
		return nil
	}
	if removeOthers {
		s.set.Clear()
	}
	var once *Listener
	once = NewListener(l.Name(), func(ev Event) error {
		s.set.Unsubscribe(once)
		return l.call(ev)
	})
	s.set.Subscribe(once)
	return once
}

// SubscribeOnly clears the channel and subscribes l as its sole listener.
func (s Subscriptions) SubscribeOnly(l *Listener) {
	s.set.Clear()
	s.set.Subscribe(l)
}
