package dispatch

import (
	"fmt"
)

// HandlerFunc is the callback invoked when a channel dispatches.
// A returned error is logged and isolated; it never aborts the pass.
type HandlerFunc func(Event) error

// Listener is a subscriber identity.
//
// Go funcs are not comparable, so the *Listener pointer is the identity:
// subscribing the same *Listener twice is a duplicate, while two Listeners
// wrapping the same func are distinct subscribers.
type Listener struct {
	name string
	fn   HandlerFunc
}

// NewListener creates a named listener. The name is used in logs and traces
// and does not take part in identity.
func NewListener(name string, fn HandlerFunc) *Listener {
	return &Listener{name: name, fn: fn}
}

// Func creates a listener from a callback that cannot fail.
func Func(name string, fn func(Event)) *Listener {
	return NewListener(name, func(ev Event) error {
		if fn != nil {
			fn(ev)
		}
		return nil
	})
}

// Name returns the listener's diagnostic name.
func (l *Listener) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// call runs the handler without panic isolation.
func (l *Listener) call(ev Event) error {
	if l.fn == nil {
		return nil
	}
	return l.fn(ev)
}

// invoke runs the handler, converting both returned errors and panics into
// a *ListenerError.
func (l *Listener) invoke(ev Event) (failure *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			failure = &ListenerError{
				Listener: l,
				Event:    ev,
				Err:      fmt.Errorf("panic: %v", r),
				Panic:    r,
			}
		}
	}()

	if err := l.call(ev); err != nil {
		return &ListenerError{Listener: l, Event: ev, Err: err}
	}
	return nil
}

// ListenerError records one listener failing during a dispatch pass.
type ListenerError struct {
	Listener *Listener
	Event    Event
	Err      error
	// Panic holds the recovered value when the listener panicked.
	Panic any
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %q failed on %s (frame=%d, seq=%d): %v",
		e.Listener.Name(), e.Event.Channel, e.Event.Frame, e.Event.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the failure was a recovered panic.
func (e *ListenerError) Panicked() bool {
	return e.Panic != nil
}
