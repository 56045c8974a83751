package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/tickcore/internal/core"
	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
	"github.com/roach88/tickcore/internal/host"
	"github.com/roach88/tickcore/internal/trace"
)

// FixedStep is the step duration passed to OnFixedTick in scenarios.
const FixedStep = 20 * time.Millisecond

// Harness runs one scenario against a fresh Core.
type Harness struct {
	scenario *Scenario
	core     *core.Core
	graph    *host.MemoryGraph
	clock    *dispatch.Clock
	rec      *trace.Recorder
	logger   *slog.Logger

	listeners map[string]*dispatch.Listener
	specs     map[string]ListenerSpec
	tasks     map[string]TaskSpec
	waits     map[string][]coroutine.Wait
	handles   map[string]*coroutine.Handle
	frames    uint64 // scripted frames driven so far
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the Core. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a Core on an empty graph with sequential ids
//  2. Subscribe listeners and start non-manual tasks
//  3. Drive the scripted frames
//  4. Evaluate assertions against the trace
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := New(scenario, opts...)
	if err != nil {
		return nil, err
	}
	return h.Execute()
}

// New prepares a harness for scenario. The scenario's Core and host are
// created here, so the trace starts with the host creation entry.
func New(scenario *Scenario, opts ...Option) (*Harness, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	policy, err := host.ParsePolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario:  scenario,
		graph:     host.NewMemoryGraph(),
		clock:     dispatch.NewClock(),
		rec:       trace.NewRecorder(),
		listeners: make(map[string]*dispatch.Listener),
		specs:     make(map[string]ListenerSpec),
		tasks:     make(map[string]TaskSpec),
		waits:     make(map[string][]coroutine.Wait),
		handles:   make(map[string]*coroutine.Handle),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c, err := core.New(
		core.WithLogger(h.logger),
		core.WithGraph(h.graph),
		core.WithClock(h.clock),
		core.WithPolicy(policy),
		core.WithIDGenerator(coroutine.NewSequenceGenerator("id")),
		core.WithCreateHook(h.hostCreated),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}
	h.core = c
	c.Lifecycle().OnHostDestroyed(h.hostDestroyed)

	for _, spec := range scenario.Listeners {
		h.specs[spec.Name] = spec
		h.listeners[spec.Name] = h.newListener(spec)
	}
	for _, spec := range scenario.Tasks {
		waits, err := parseWaits(spec.Waits)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", spec.Name, err)
		}
		h.tasks[spec.Name] = spec
		h.waits[spec.Name] = waits
	}
	return h, nil
}

// Core returns the Core the scenario runs against.
func (h *Harness) Core() *core.Core { return h.core }

// Execute subscribes the listeners, starts the tasks, drives every frame
// and evaluates the assertions.
func (h *Harness) Execute() (*Result, error) {
	for _, spec := range h.scenario.Listeners {
		h.subscribe(spec.Name)
	}
	for _, spec := range h.scenario.Tasks {
		if !spec.Manual {
			h.start(spec.Name)
		}
	}

	for _, f := range h.scenario.Frames {
		if err := h.runFrame(f); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	result.Trace = h.rec.Entries()
	result.Hosts = h.core.Lifecycle().Generation()
	for name, handle := range h.handles {
		result.Tasks[name] = handle.State().String()
	}
	for _, msg := range EvaluateAssertions(result, h.scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runFrame(f FrameSpec) error {
	delta, err := f.delta()
	if err != nil {
		return err
	}

	for _, name := range f.Subscribe {
		h.subscribe(name)
	}
	for _, name := range f.Start {
		h.start(name)
	}
	for _, name := range f.Stop {
		if handle, ok := h.handles[name]; ok {
			h.core.Stop(handle)
		}
	}

	for i := 0; i < f.repeat(); i++ {
		h.frames++
		h.drive(f.FixedSteps, delta)
	}

	if f.UnloadScene {
		n := h.graph.UnloadScene()
		h.record(trace.KindLifecycle, "scene:unload", fmt.Sprintf("%d destroyed", n))
	}
	if f.Destroy {
		if d, ok := h.core.Driver(); ok {
			h.graph.Destroy(d.(*host.Host))
		}
	}
	return nil
}

// drive runs one engine frame. The driver is resolved before every
// callback, as an engine stops calling destroyed objects.
func (h *Harness) drive(fixedSteps int, delta time.Duration) {
	for i := 0; i < fixedSteps; i++ {
		if d, ok := h.core.Driver(); ok {
			d.OnFixedTick(FixedStep)
		}
	}
	if d, ok := h.core.Driver(); ok {
		d.OnTick(delta)
	}
	if d, ok := h.core.Driver(); ok {
		d.OnPostTick()
	}
}

func (h *Harness) newListener(spec ListenerSpec) *dispatch.Listener {
	calls := 0
	var l *dispatch.Listener
	l = dispatch.NewListener(spec.Name, func(ev dispatch.Event) error {
		calls++
		h.rec.Record(trace.Entry{
			Seq:     ev.Seq,
			Frame:   ev.Frame,
			Channel: ev.Channel.String(),
			Kind:    trace.KindListener,
			Name:    spec.Name,
		})
		if spec.UnsubscribeAfter > 0 && calls >= spec.UnsubscribeAfter {
			h.core.Hub().On(ev.Channel).Unsubscribe(l)
		}
		if spec.Panic {
			panic(fmt.Sprintf("listener %s panicked", spec.Name))
		}
		if spec.Fail != "" {
			return errors.New(spec.Fail)
		}
		return nil
	})
	return l
}

func (h *Harness) subscribe(name string) {
	spec := h.specs[name]
	ch, err := dispatch.ParseChannel(spec.Channel)
	if err != nil {
		return // rejected by validateScenario
	}
	subs := h.core.On(ch)
	l := h.listeners[name]
	switch {
	case spec.Once:
		subs.SubscribeOnce(l, spec.Only)
	case spec.Only:
		subs.SubscribeOnly(l)
	default:
		subs.Subscribe(l)
	}
}

func (h *Harness) start(name string) {
	handle, err := h.core.Start(name, h.routine(name, h.waits[name]))
	if err != nil {
		code := err.Error()
		var re *host.RuntimeError
		if errors.As(err, &re) {
			code = string(re.Code)
		}
		h.rec.Record(trace.Entry{
			Seq:    h.clock.Current(),
			Frame:  h.frames,
			Kind:   trace.KindError,
			Name:   name,
			Detail: code,
		})
		return
	}
	h.handles[name] = handle
}

// routine yields each wait in turn and records an entry when it resumes.
func (h *Harness) routine(name string, waits []coroutine.Wait) coroutine.Routine {
	return func(yield func(coroutine.Wait) bool) {
		for i, w := range waits {
			if !yield(w) {
				return
			}
			e := trace.Entry{
				Seq:     h.clock.Current(),
				Channel: w.Channel().String(),
				Kind:    trace.KindTask,
				Name:    name,
				Detail:  fmt.Sprintf("step %d", i+1),
			}
			if cur, ok := h.core.Lifecycle().Current(); ok {
				e.Frame = cur.Frame()
				if w.Channel() == dispatch.FixedTick {
					e.Frame++ // fixed steps belong to the frame being built
				}
			}
			h.rec.Record(e)
		}
	}
}

func (h *Harness) hostCreated(created *host.Host) {
	h.rec.Record(trace.Entry{
		Seq:    h.clock.Current(),
		Frame:  created.Frame(),
		Kind:   trace.KindLifecycle,
		Name:   "host:create",
		Detail: created.ID(),
	})
}

func (h *Harness) hostDestroyed(destroyed *host.Host) {
	h.rec.Record(trace.Entry{
		Seq:    h.clock.Current(),
		Frame:  destroyed.Frame(),
		Kind:   trace.KindLifecycle,
		Name:   "host:destroy",
		Detail: destroyed.ID(),
	})
}

func (h *Harness) record(kind trace.Kind, name, detail string) {
	var frame uint64
	if cur, ok := h.core.Lifecycle().Current(); ok {
		frame = cur.Frame()
	}
	h.rec.Record(trace.Entry{
		Seq:    h.clock.Current(),
		Frame:  frame,
		Kind:   kind,
		Name:   name,
		Detail: detail,
	})
}
