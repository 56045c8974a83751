package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tickcore/internal/trace"
)

// Snapshot captures what a golden file pins down for one scenario run.
type Snapshot struct {
	Scenario string
	Trace    []trace.Entry
	Tasks    map[string]string
	Hosts    int
}

// NewSnapshot builds a snapshot from a run.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		Scenario: name,
		Trace:    result.Trace,
		Tasks:    result.Tasks,
		Hosts:    result.Hosts,
	}
}

// toCanonicalMap converts the snapshot for trace.MarshalCanonical.
func (s Snapshot) toCanonicalMap() map[string]any {
	entries := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		entries[i] = e.Canonical()
	}
	tasks := make(map[string]any, len(s.Tasks))
	for name, state := range s.Tasks {
		tasks[name] = state
	}
	return map[string]any{
		"scenario": s.Scenario,
		"trace":    entries,
		"tasks":    tasks,
		"hosts":    s.Hosts,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return trace.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A mismatch fails t via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
