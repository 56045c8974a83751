package harness

import "github.com/roach88/tickcore/internal/trace"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every recorded entry in dispatch order.
	Trace []trace.Entry `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tasks maps task name to the state of the last handle started for it.
	Tasks map[string]string `json:"tasks"`

	// Hosts is the number of hosts bound over the run.
	Hosts int `json:"hosts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Entry{},
		Errors: []string{},
		Tasks:  make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the listener and task entries, which are the ones that
// trace_equals and trace_order look at.
func (r *Result) Calls() []trace.Entry {
	var out []trace.Entry
	for _, e := range r.Trace {
		if e.Kind == trace.KindListener || e.Kind == trace.KindTask {
			out = append(out, e)
		}
	}
	return out
}
