package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
	"github.com/roach88/tickcore/internal/host"
)

// DefaultDelta is the frame delta used when a frame does not set one.
const DefaultDelta = 16 * time.Millisecond

// Scenario defines a scripted dispatch run.
//
// The json tags are the field names used by CUE scenario files.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Policy is the host recreate policy: recreate (default) or fail.
	Policy string `yaml:"policy,omitempty" json:"policy,omitempty"`

	// Listeners are subscribed in order before the first frame.
	Listeners []ListenerSpec `yaml:"listeners,omitempty" json:"listeners,omitempty"`

	// Tasks are started in order before the first frame, unless manual.
	Tasks []TaskSpec `yaml:"tasks,omitempty" json:"tasks,omitempty"`

	// Frames is the scripted sequence of engine frames.
	Frames []FrameSpec `yaml:"frames" json:"frames,omitempty"`

	// Assertions validate the final trace and task states.
	Assertions []Assertion `yaml:"assertions" json:"assertions,omitempty"`
}

// ListenerSpec describes one listener.
type ListenerSpec struct {
	Name    string `yaml:"name" json:"name"`
	Channel string `yaml:"channel" json:"channel"`

	// Once removes the listener after its first call.
	Once bool `yaml:"once,omitempty" json:"once,omitempty"`

	// Only removes every other listener on the channel when subscribing.
	Only bool `yaml:"only,omitempty" json:"only,omitempty"`

	// Fail makes the listener return an error with this message.
	Fail string `yaml:"fail,omitempty" json:"fail,omitempty"`

	// Panic makes the listener panic after recording.
	Panic bool `yaml:"panic,omitempty" json:"panic,omitempty"`

	// UnsubscribeAfter removes the listener from inside its own call once
	// it has been called this many times.
	UnsubscribeAfter int `yaml:"unsubscribe_after,omitempty" json:"unsubscribe_after,omitempty"`
}

// TaskSpec describes one task as the list of waits it yields in turn.
// The task records an entry each time one of its waits is satisfied.
type TaskSpec struct {
	Name  string   `yaml:"name" json:"name"`
	Waits []string `yaml:"waits,omitempty" json:"waits,omitempty"`

	// Manual tasks are only started by a frame's start list.
	Manual bool `yaml:"manual,omitempty" json:"manual,omitempty"`
}

// FrameSpec describes one scripted frame. Subscribe, start and stop run
// before the frame; unload_scene and destroy run after it.
type FrameSpec struct {
	FixedSteps  int      `yaml:"fixed_steps,omitempty" json:"fixed_steps,omitempty"`
	Delta       string   `yaml:"delta,omitempty" json:"delta,omitempty"`
	Repeat      int      `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	Subscribe   []string `yaml:"subscribe,omitempty" json:"subscribe,omitempty"`
	Start       []string `yaml:"start,omitempty" json:"start,omitempty"`
	Stop        []string `yaml:"stop,omitempty" json:"stop,omitempty"`
	UnloadScene bool     `yaml:"unload_scene,omitempty" json:"unload_scene,omitempty"`
	Destroy     bool     `yaml:"destroy,omitempty" json:"destroy,omitempty"`
}

// Assertion validates the trace or final task state.
type Assertion struct {
	// Type is one of trace_equals, trace_order, trace_count, task_state, hosts.
	Type string `yaml:"type" json:"type"`

	// Names is the expected sequence (trace_equals, trace_order).
	Names []string `yaml:"names,omitempty" json:"names,omitempty"`

	// Name is the entry or task name (trace_count, task_state).
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Count is the expected number (trace_count, hosts).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// State is the expected task state (task_state).
	State string `yaml:"state,omitempty" json:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceEquals = "trace_equals"
	AssertTraceOrder  = "trace_order"
	AssertTraceCount  = "trace_count"
	AssertTaskState   = "task_state"
	AssertHosts       = "hosts"
)

// LoadScenario reads a scenario from a .yaml, .yml or .cue file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		scenario, err = decodeCUE(path, data)
	case ".yaml", ".yml":
		scenario, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported scenario file %s: want .yaml, .yml or .cue", path)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// IsScenarioFile reports whether path has a scenario file extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

func decodeYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// reference resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Frames) == 0 {
		return fmt.Errorf("frames list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := host.ParsePolicy(s.Policy); err != nil {
		return err
	}

	listeners := make(map[string]bool, len(s.Listeners))
	for i, l := range s.Listeners {
		if l.Name == "" {
			return fmt.Errorf("listeners[%d]: name is required", i)
		}
		if listeners[l.Name] {
			return fmt.Errorf("listeners[%d]: duplicate name %q", i, l.Name)
		}
		listeners[l.Name] = true
		if _, err := dispatch.ParseChannel(l.Channel); err != nil {
			return fmt.Errorf("listeners[%d]: %w", i, err)
		}
		if l.UnsubscribeAfter < 0 {
			return fmt.Errorf("listeners[%d]: unsubscribe_after must not be negative", i)
		}
	}

	tasks := make(map[string]bool, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.Name == "" {
			return fmt.Errorf("tasks[%d]: name is required", i)
		}
		if tasks[t.Name] {
			return fmt.Errorf("tasks[%d]: duplicate name %q", i, t.Name)
		}
		tasks[t.Name] = true
		if _, err := parseWaits(t.Waits); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}

	for i, f := range s.Frames {
		if f.FixedSteps < 0 || f.Repeat < 0 {
			return fmt.Errorf("frames[%d]: fixed_steps and repeat must not be negative", i)
		}
		if _, err := f.delta(); err != nil {
			return fmt.Errorf("frames[%d]: %w", i, err)
		}
		for _, name := range f.Subscribe {
			if !listeners[name] {
				return fmt.Errorf("frames[%d]: unknown listener %q", i, name)
			}
		}
		for _, name := range append(append([]string(nil), f.Start...), f.Stop...) {
			if !tasks[name] {
				return fmt.Errorf("frames[%d]: unknown task %q", i, name)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks that an assertion carries the fields its type needs.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceEquals:
		// An empty names list asserts an empty trace.
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertion[%d]: trace_order requires names", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertion[%d]: trace_count requires name", index)
		}
	case AssertTaskState:
		if a.Name == "" || a.State == "" {
			return fmt.Errorf("assertion[%d]: task_state requires name and state", index)
		}
	case AssertHosts:
	case "":
		return fmt.Errorf("assertion[%d]: type is required", index)
	default:
		return fmt.Errorf("assertion[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (f FrameSpec) delta() (time.Duration, error) {
	if f.Delta == "" {
		return DefaultDelta, nil
	}
	d, err := time.ParseDuration(f.Delta)
	if err != nil {
		return 0, fmt.Errorf("invalid delta %q: %w", f.Delta, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid delta %q: must not be negative", f.Delta)
	}
	return d, nil
}

func (f FrameSpec) repeat() int {
	if f.Repeat < 1 {
		return 1
	}
	return f.Repeat
}

// parseWaits converts wait names into coroutine waits:
// next_tick, fixed_tick, end_of_frame, frames:N and delay:D.
func parseWaits(names []string) ([]coroutine.Wait, error) {
	waits := make([]coroutine.Wait, 0, len(names))
	for _, raw := range names {
		kind, arg, hasArg := strings.Cut(strings.TrimSpace(raw), ":")
		var w coroutine.Wait
		switch {
		case kind == "next_tick" && !hasArg:
			w = coroutine.NextTick()
		case kind == "fixed_tick" && !hasArg:
			w = coroutine.NextFixedTick()
		case kind == "end_of_frame" && !hasArg:
			w = coroutine.EndOfFrame()
		case kind == "frames" && hasArg:
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid wait %q: frames needs a positive count", raw)
			}
			w = coroutine.Frames(n)
		case kind == "delay" && hasArg:
			d, err := time.ParseDuration(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid wait %q: %w", raw, err)
			}
			w = coroutine.Delay(d)
		default:
			return nil, fmt.Errorf("unknown wait %q", raw)
		}
		waits = append(waits, w)
	}
	return waits, nil
}
