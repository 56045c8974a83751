package testutil

import (
	"sync"

	"github.com/roach88/tickcore/internal/dispatch"
)

// CallLog records listener invocations in call order.
//
// Thread-safety: safe for concurrent use, so loop tests can read it from
// the test goroutine while the loop goroutine appends.
type CallLog struct {
	mu    sync.Mutex
	calls []Call
}

// Call is one recorded invocation.
type Call struct {
	Name  string
	Event dispatch.Event
}

// NewCallLog creates an empty log.
func NewCallLog() *CallLog {
	return &CallLog{}
}

// Listener returns a new listener that records itself under name.
func (l *CallLog) Listener(name string) *dispatch.Listener {
	return dispatch.Func(name, func(ev dispatch.Event) {
		l.Record(name, ev)
	})
}

// Record appends a call.
func (l *CallLog) Record(name string, ev dispatch.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Name: name, Event: ev})
}

// Names returns recorded names in call order.
func (l *CallLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.Name
	}
	return out
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Count returns how many times name was recorded.
func (l *CallLog) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Reset clears the log.
func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}
