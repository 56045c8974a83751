// Package core is the dispatcher context application code talks to.
//
// A Core bundles one hub, one host lifecycle and one task proxy. There is
// no global instance: callers construct a Core and pass it around.
package core

import (
	"log/slog"

	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
	"github.com/roach88/tickcore/internal/host"
)

// Core is the process-wide tick dispatcher.
//
// Core is not safe for concurrent use. Work from other goroutines must be
// handed to the dispatch goroutine, e.g. through loop.Loop.Submit.
type Core struct {
	hub       *dispatch.Hub
	lifecycle *host.Lifecycle
	tasks     *host.TaskProxy
	logger    *slog.Logger
}

type options struct {
	logger *slog.Logger
	graph  host.SceneGraph
	policy host.RecreatePolicy
	ids    coroutine.IDGenerator
	name   string
	clock  *dispatch.Clock
	hooks  []func(*host.Host)
}

// Option configures a Core.
type Option func(*options)

// WithLogger sets the logger shared by every component. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithGraph sets the scene graph hosts are found in and attached to.
func WithGraph(g host.SceneGraph) Option {
	return func(o *options) {
		o.graph = g
	}
}

// WithPolicy sets what happens when the host is needed after destruction.
func WithPolicy(p host.RecreatePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithIDGenerator sets the generator for host and task ids.
func WithIDGenerator(ids coroutine.IDGenerator) Option {
	return func(o *options) {
		o.ids = ids
	}
}

// WithHostName sets the name of created hosts. Default: host.DefaultName.
func WithHostName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithClock sets the logical clock stamping dispatch passes.
func WithClock(clock *dispatch.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithCreateHook runs fn on every freshly created host before it is attached.
func WithCreateHook(fn func(*host.Host)) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, fn)
	}
}

// New builds a Core and resolves its host immediately.
func New(opts ...Option) (*Core, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	hubOpts := []dispatch.HubOption{dispatch.WithLogger(o.logger)}
	if o.clock != nil {
		hubOpts = append(hubOpts, dispatch.WithClock(o.clock))
	}
	hub := dispatch.NewHub(hubOpts...)

	lcOpts := []host.LifecycleOption{
		host.WithLogger(o.logger),
		host.WithPolicy(o.policy),
	}
	if o.graph != nil {
		lcOpts = append(lcOpts, host.WithGraph(o.graph))
	}
	if o.ids != nil {
		lcOpts = append(lcOpts, host.WithIDGenerator(o.ids))
	}
	if o.name != "" {
		lcOpts = append(lcOpts, host.WithName(o.name))
	}
	for _, fn := range o.hooks {
		lcOpts = append(lcOpts, host.WithCreateHook(fn))
	}
	lifecycle := host.NewLifecycle(hub, lcOpts...)

	c := &Core{
		hub:       hub,
		lifecycle: lifecycle,
		tasks:     host.NewTaskProxy(lifecycle, o.logger),
		logger:    o.logger,
	}
	if _, err := lifecycle.GetOrCreateHost(); err != nil {
		return nil, err
	}
	return c, nil
}

// On returns the subscription set for ch, reviving the host first if it was
// destroyed and the policy allows a new one.
func (c *Core) On(ch dispatch.Channel) dispatch.Subscriptions {
	c.revive()
	return c.hub.On(ch)
}

// OnTick returns the per-frame subscription set.
func (c *Core) OnTick() dispatch.Subscriptions { return c.On(dispatch.Tick) }

// OnFixedTick returns the fixed-step subscription set.
func (c *Core) OnFixedTick() dispatch.Subscriptions { return c.On(dispatch.FixedTick) }

// OnPostTick returns the post-frame subscription set.
func (c *Core) OnPostTick() dispatch.Subscriptions { return c.On(dispatch.PostTick) }

// Start runs routine on the host. Fails with host.ErrNoHostAvailable when
// the host is gone and the policy forbids a new one.
func (c *Core) Start(name string, routine coroutine.Routine) (*coroutine.Handle, error) {
	return c.tasks.Start(name, routine)
}

// Stop stops a task started through this Core. Finished or foreign handles
// are ignored.
func (c *Core) Stop(h *coroutine.Handle) bool {
	return c.tasks.Stop(h)
}

// Outstanding returns handles of tasks started through this Core that are
// still running.
func (c *Core) Outstanding() []*coroutine.Handle {
	return c.tasks.Outstanding()
}

// Host returns the live host, creating one if the policy allows.
func (c *Core) Host() (*host.Host, error) {
	return c.lifecycle.GetOrCreateHost()
}

// Driver returns the live host as the engine sees it, without creating one.
func (c *Core) Driver() (host.Driver, bool) {
	h, ok := c.lifecycle.Current()
	if !ok {
		return nil, false
	}
	return h, true
}

// Hub returns the underlying hub.
func (c *Core) Hub() *dispatch.Hub { return c.hub }

// Lifecycle returns the host lifecycle.
func (c *Core) Lifecycle() *host.Lifecycle { return c.lifecycle }

// Shutdown destroys the host and makes every later host request fail.
func (c *Core) Shutdown() {
	c.lifecycle.Shutdown()
}

// revive brings a host back before new subscriptions arrive, so listeners
// added after a destruction are driven. Refusals are left for Start and
// Host to report.
func (c *Core) revive() {
	if _, ok := c.lifecycle.Current(); ok {
		return
	}
	if _, err := c.lifecycle.GetOrCreateHost(); err != nil {
		c.logger.Debug("no host for new subscriptions", "error", err)
	}
}
