package host

import (
	"log/slog"

	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
)

// Lifecycle lazily resolves the single host that drives a hub.
//
// Lifecycle is not safe for concurrent use.
type Lifecycle struct {
	graph  SceneGraph
	hub    *dispatch.Hub
	ids    coroutine.IDGenerator
	logger *slog.Logger
	policy RecreatePolicy
	name   string

	state      State
	current    *Host
	creating   bool
	generation int

	onCreate    []func(*Host)
	onDestroyed []func(*Host)
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithGraph sets the scene graph. Default: a new MemoryGraph.
func WithGraph(g SceneGraph) LifecycleOption {
	return func(l *Lifecycle) {
		l.graph = g
	}
}

// WithPolicy sets the recreate policy. Default: Recreate.
func WithPolicy(p RecreatePolicy) LifecycleOption {
	return func(l *Lifecycle) {
		l.policy = p
	}
}

// WithIDGenerator sets the generator for host and task ids.
// Default: coroutine.UUIDv7Generator.
func WithIDGenerator(ids coroutine.IDGenerator) LifecycleOption {
	return func(l *Lifecycle) {
		l.ids = ids
	}
}

// WithLogger sets the lifecycle logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithName sets the name given to created hosts. Default: DefaultName.
func WithName(name string) LifecycleOption {
	return func(l *Lifecycle) {
		l.name = name
	}
}

// WithCreateHook registers fn to run on a freshly created host before it is
// attached to the graph.
func WithCreateHook(fn func(*Host)) LifecycleOption {
	return func(l *Lifecycle) {
		l.onCreate = append(l.onCreate, fn)
	}
}

// NewLifecycle creates a lifecycle that binds hosts to hub.
func NewLifecycle(hub *dispatch.Hub, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{hub: hub}
	for _, opt := range opts {
		opt(l)
	}
	if l.graph == nil {
		l.graph = NewMemoryGraph()
	}
	if l.ids == nil {
		l.ids = coroutine.UUIDv7Generator{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.name == "" {
		l.name = DefaultName
	}
	return l
}

// OnHostDestroyed registers fn to run after the bound host is destroyed and
// the hub has been cleared.
func (l *Lifecycle) OnHostDestroyed(fn func(*Host)) {
	l.onDestroyed = append(l.onDestroyed, fn)
}

// GetOrCreateHost returns the bound host, adopting one from the graph or
// creating one if needed. Hosts already driven by another hub are never
// adopted.
//
// Returns ErrNoHostAvailable after Shutdown, or after the host was
// destroyed under FailAfterDestroy. Panics with ErrReentrantHostCreation
// if called from inside host creation.
func (l *Lifecycle) GetOrCreateHost() (*Host, error) {
	if l.creating {
		panic(NewReentrantCreationError(l.name))
	}
	if l.current.Alive() {
		return l.current, nil
	}

	switch {
	case l.state == ShutDown:
		return nil, NewNoHostError("lifecycle shut down", "")
	case l.state == Destroyed && l.policy == FailAfterDestroy:
		return nil, NewNoHostError("host destroyed and recreate policy is fail", l.lastID())
	}

	l.creating = true
	defer func() { l.creating = false }()

	if h := l.graph.FindHost(l.adoptable); h != nil {
		l.bind(h, "adopted")
		return h, nil
	}

	h := NewHost(l.ids.Generate(), l.name, Persistent(), Hidden())
	for _, fn := range l.onCreate {
		fn(h)
	}
	l.graph.Attach(h)
	l.bind(h, "created")
	return h, nil
}

// Current returns the bound host if it is alive, without creating one.
func (l *Lifecycle) Current() (*Host, bool) {
	if !l.current.Alive() {
		return nil, false
	}
	return l.current, true
}

// State returns the lifecycle state.
func (l *Lifecycle) State() State { return l.state }

// Policy returns the recreate policy.
func (l *Lifecycle) Policy() RecreatePolicy { return l.policy }

// Generation returns how many hosts have been bound so far.
func (l *Lifecycle) Generation() int { return l.generation }

// Hub returns the hub hosts are bound to.
func (l *Lifecycle) Hub() *dispatch.Hub { return l.hub }

// Shutdown destroys the bound host and refuses all later requests.
func (l *Lifecycle) Shutdown() {
	if l.state == ShutDown {
		return
	}
	l.state = ShutDown
	if h, ok := l.Current(); ok {
		if !l.graph.Destroy(h) {
			h.OnDestroy()
		}
	}
	l.logger.Info("lifecycle shut down", "generation", l.generation)
}

func (l *Lifecycle) bind(h *Host, origin string) {
	scheduler := coroutine.NewScheduler(l.hub.Clock(),
		coroutine.WithIDGenerator(l.ids),
		coroutine.WithLogger(l.logger),
	)
	h.bind(l.hub, scheduler, l.logger, l.hostDestroyed)
	l.current = h
	l.state = Alive
	l.generation++

	l.logger.Info("host bound",
		"host", h.ID(),
		"name", h.Name(),
		"origin", origin,
		"generation", l.generation,
	)
}

// adoptable accepts hosts that no other hub drives. A host bound to another
// lifecycle stays with it.
func (l *Lifecycle) adoptable(h *Host) bool {
	return !h.Bound() || h.hub == l.hub
}

// hostDestroyed runs from the host's OnDestroy.
func (l *Lifecycle) hostDestroyed(h *Host) {
	if h != l.current {
		return
	}
	if l.state != ShutDown {
		l.state = Destroyed
	}
	l.hub.Clear()

	l.logger.Info("host destroyed",
		"host", h.ID(),
		"policy", l.policy.String(),
		"state", l.state.String(),
	)

	for _, fn := range l.onDestroyed {
		fn(h)
	}
}

func (l *Lifecycle) lastID() string {
	if l.current == nil {
		return ""
	}
	return l.current.ID()
}
