// Package trace records what a dispatch run did, in dispatch order.
package trace

import (
	"fmt"
	"strings"

	"github.com/roach88/tickcore/internal/dispatch"
)

// Kind classifies trace entries.
type Kind string

const (
	KindListener  Kind = "listener"
	KindTask      Kind = "task"
	KindLifecycle Kind = "lifecycle"
	KindError     Kind = "error"
)

// Entry is one observed event.
type Entry struct {
	Seq     int64  `json:"seq"`
	Frame   uint64 `json:"frame"`
	Channel string `json:"channel,omitempty"`
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Detail  string `json:"detail,omitempty"`
}

func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d  frame=%-3d %-10s %-9s %s", e.Seq, e.Frame, e.Channel, e.Kind, e.Name)
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return strings.TrimRight(b.String(), " ")
}

// Canonical returns e as a map for MarshalCanonical. Empty channel and detail
// are left out.
func (e Entry) Canonical() map[string]any {
	m := map[string]any{
		"seq":   e.Seq,
		"frame": e.Frame,
		"kind":  string(e.Kind),
		"name":  e.Name,
	}
	if e.Channel != "" {
		m["channel"] = e.Channel
	}
	if e.Detail != "" {
		m["detail"] = e.Detail
	}
	return m
}

// Recorder accumulates entries. It is not safe for concurrent use; it lives
// on the dispatch goroutine with everything it observes.
type Recorder struct {
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends e.
func (r *Recorder) Record(e Entry) {
	r.entries = append(r.entries, e)
}

// Listener returns a new listener that records each call under name.
func (r *Recorder) Listener(name string) *dispatch.Listener {
	return dispatch.Func(name, r.observe(name))
}

func (r *Recorder) observe(name string) func(dispatch.Event) {
	return func(ev dispatch.Event) {
		r.Record(Entry{
			Seq:     ev.Seq,
			Frame:   ev.Frame,
			Channel: ev.Channel.String(),
			Kind:    KindListener,
			Name:    name,
		})
	}
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Names returns entry names in order.
func (r *Recorder) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// Count returns how many entries carry name.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, e := range r.entries {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (r *Recorder) Len() int { return len(r.entries) }

// Reset drops all entries.
func (r *Recorder) Reset() { r.entries = nil }

// FormatText renders entries one per line.
func FormatText(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// MarshalJSON renders entries as a canonical JSON array.
func MarshalJSON(entries []Entry) ([]byte, error) {
	arr := make([]any, len(entries))
	for i, e := range entries {
		arr[i] = e.Canonical()
	}
	return MarshalCanonical(arr)
}
