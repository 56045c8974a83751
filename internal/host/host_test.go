package host

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcore/internal/coroutine"
	"github.com/roach88/tickcore/internal/dispatch"
)

type fixture struct {
	hub       *dispatch.Hub
	graph     *MemoryGraph
	lifecycle *Lifecycle
	tasks     *TaskProxy
}

func newFixture(opts ...LifecycleOption) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		hub:   dispatch.NewHub(dispatch.WithLogger(logger)),
		graph: NewMemoryGraph(),
	}
	base := []LifecycleOption{
		WithGraph(f.graph),
		WithLogger(logger),
		WithIDGenerator(coroutine.NewSequenceGenerator("id")),
	}
	f.lifecycle = NewLifecycle(f.hub, append(base, opts...)...)
	f.tasks = NewTaskProxy(f.lifecycle, logger)
	return f
}

func (f *fixture) host(t *testing.T) *Host {
	t.Helper()
	h, err := f.lifecycle.GetOrCreateHost()
	require.NoError(t, err)
	return h
}

// frame drives one engine frame with the given number of fixed steps.
func frame(h *Host, fixedSteps int) {
	for i := 0; i < fixedSteps; i++ {
		h.OnFixedTick(20 * time.Millisecond)
	}
	h.OnTick(16 * time.Millisecond)
	h.OnPostTick()
}

func TestLifecycle_CreatesPersistentHiddenHost(t *testing.T) {
	f := newFixture()
	assert.Equal(t, Uninitialized, f.lifecycle.State())

	h := f.host(t)

	assert.Equal(t, DefaultName, h.Name())
	assert.Equal(t, "id-0001", h.ID())
	assert.True(t, h.IsPersistent())
	assert.True(t, h.IsHidden())
	assert.True(t, h.Alive())
	assert.True(t, h.Bound())
	assert.Equal(t, []*Host{h}, f.graph.Hosts())
	assert.Equal(t, Alive, f.lifecycle.State())
	assert.Equal(t, 1, f.lifecycle.Generation())

	again := f.host(t)
	assert.Same(t, h, again)
	assert.Equal(t, 1, f.graph.Len())
	assert.Equal(t, 1, f.lifecycle.Generation())
}

func TestLifecycle_AdoptsExistingHost(t *testing.T) {
	f := newFixture()
	existing := NewHost("pre-placed", "Bootstrap")
	f.graph.Attach(existing)

	h := f.host(t)

	assert.Same(t, existing, h)
	assert.True(t, h.Bound())
	assert.False(t, h.IsPersistent())
	assert.Equal(t, 1, f.graph.Len())
}

func TestLifecycle_SkipsHostOwnedByAnotherHub(t *testing.T) {
	f := newFixture()
	owned := f.host(t)

	otherHub := dispatch.NewHub()
	other := NewLifecycle(otherHub,
		WithGraph(f.graph),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(coroutine.NewSequenceGenerator("other")),
	)
	h, err := other.GetOrCreateHost()
	require.NoError(t, err)

	assert.NotSame(t, owned, h)
	assert.Equal(t, "other-0001", h.ID())
	assert.Equal(t, 2, f.graph.Len())
	assert.Same(t, f.hub, owned.hub)
	assert.Same(t, otherHub, h.hub)
	assert.NotSame(t, owned.Scheduler(), h.Scheduler())

	require.True(t, f.graph.Destroy(h))
	assert.Equal(t, Destroyed, other.State())
	assert.Equal(t, Alive, f.lifecycle.State())
	assert.True(t, owned.Alive())
}

func TestHost_RebindKeepsSchedulerOnlyForSameHub(t *testing.T) {
	f := newFixture()
	h := f.host(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var log []string
	task, err := h.StartTask("loop", forever(&log, "loop"))
	require.NoError(t, err)
	sched := h.Scheduler()

	h.bind(f.hub, coroutine.NewScheduler(f.hub.Clock()), logger, nil)
	assert.Same(t, sched, h.Scheduler())
	assert.True(t, task.Valid())

	otherHub := dispatch.NewHub()
	fresh := coroutine.NewScheduler(otherHub.Clock())
	h.bind(otherHub, fresh, logger, nil)

	assert.Same(t, fresh, h.Scheduler())
	assert.Equal(t, coroutine.Cancelled, task.State())
	assert.Equal(t, []string{"loop cleanup"}, log)
}

func TestLifecycle_CurrentDoesNotCreate(t *testing.T) {
	f := newFixture()

	_, ok := f.lifecycle.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, f.graph.Len())

	h := f.host(t)
	cur, ok := f.lifecycle.Current()
	require.True(t, ok)
	assert.Same(t, h, cur)
}

func TestLifecycle_RecreateAfterDestroy(t *testing.T) {
	f := newFixture()
	first := f.host(t)
	f.hub.OnTick().Subscribe(dispatch.Func("a", nil))

	require.True(t, f.graph.Destroy(first))

	assert.False(t, first.Alive())
	assert.Equal(t, Destroyed, f.lifecycle.State())
	assert.Equal(t, 0, f.hub.Len(dispatch.Tick), "hub cleared on destroy")

	second := f.host(t)
	assert.NotSame(t, first, second)
	assert.True(t, second.Alive())
	assert.Equal(t, 2, f.lifecycle.Generation())
	assert.Equal(t, Alive, f.lifecycle.State())
}

func TestLifecycle_FailPolicyRefusesAfterDestroy(t *testing.T) {
	f := newFixture(WithPolicy(FailAfterDestroy))
	first := f.host(t)
	f.graph.Destroy(first)

	h, err := f.lifecycle.GetOrCreateHost()

	assert.Nil(t, h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoHostAvailable))
	assert.True(t, IsNoHostError(err))
	assert.False(t, errors.Is(err, ErrReentrantHostCreation))

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, first.ID(), re.HostID)
}

func TestLifecycle_ShutdownDestroysAndRefuses(t *testing.T) {
	f := newFixture()
	h := f.host(t)

	f.lifecycle.Shutdown()

	assert.False(t, h.Alive())
	assert.Equal(t, ShutDown, f.lifecycle.State())
	assert.Equal(t, 0, f.graph.Len())

	_, err := f.lifecycle.GetOrCreateHost()
	assert.ErrorIs(t, err, ErrNoHostAvailable)

	f.lifecycle.Shutdown() // idempotent
}

func TestLifecycle_ReentrantCreationPanics(t *testing.T) {
	var f *fixture
	f = newFixture(WithCreateHook(func(*Host) {
		_, _ = f.lifecycle.GetOrCreateHost()
	}))

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_, _ = f.lifecycle.GetOrCreateHost()
	}()

	err, ok := recovered.(error)
	require.True(t, ok, "panic value should be an error, got %v", recovered)
	assert.ErrorIs(t, err, ErrReentrantHostCreation)
	assert.Equal(t, 0, f.graph.Len(), "aborted creation is not attached")

	// The guard is released, so a later call without the hook path works.
	f.lifecycle.onCreate = nil
	h := f.host(t)
	assert.True(t, h.Alive())
}

func TestMemoryGraph_UnloadSceneKeepsPersistentHost(t *testing.T) {
	f := newFixture()
	h := f.host(t)
	scenery := NewHost("scenery", "Scenery")
	f.graph.Attach(scenery)

	assert.Equal(t, 1, f.graph.UnloadScene())

	assert.True(t, h.Alive())
	assert.False(t, scenery.Alive())
	assert.Equal(t, []*Host{h}, f.graph.Hosts())

	assert.Equal(t, 1, f.graph.DestroyAll())
	assert.False(t, h.Alive())
	assert.False(t, f.graph.Destroy(h), "already removed")
}

func TestHost_DriverDispatchOrderAndEvents(t *testing.T) {
	f := newFixture()
	h := f.host(t)

	var got []dispatch.Event
	rec := func(ev dispatch.Event) { got = append(got, ev) }
	f.hub.OnTick().Subscribe(dispatch.Func("tick", rec))
	f.hub.OnFixedTick().Subscribe(dispatch.Func("fixed", rec))
	f.hub.OnPostTick().Subscribe(dispatch.Func("post", rec))

	frame(h, 2)
	frame(h, 0)

	require.Len(t, got, 6)
	want := []struct {
		ch    dispatch.Channel
		frame uint64
		step  int
	}{
		{dispatch.FixedTick, 1, 0},
		{dispatch.FixedTick, 1, 1},
		{dispatch.Tick, 1, 0},
		{dispatch.PostTick, 1, 0},
		{dispatch.Tick, 2, 0},
		{dispatch.PostTick, 2, 0},
	}
	for i, w := range want {
		assert.Equal(t, w.ch, got[i].Channel, "event %d", i)
		assert.Equal(t, w.frame, got[i].Frame, "event %d", i)
		assert.Equal(t, w.step, got[i].Step, "event %d", i)
		assert.Equal(t, int64(i+1), got[i].Seq, "event %d", i)
	}
	assert.Equal(t, 16*time.Millisecond, got[2].Delta)
	assert.Equal(t, uint64(2), h.Frame())
}

func TestHost_DestroyedHostIgnoresCallbacks(t *testing.T) {
	f := newFixture()
	h := f.host(t)
	calls := 0
	f.graph.Destroy(h)
	f.hub.OnTick().Subscribe(dispatch.Func("late", func(dispatch.Event) { calls++ }))

	frame(h, 1)

	assert.Equal(t, 0, calls)
	_, err := h.StartTask("late", func(func(coroutine.Wait) bool) {})
	assert.ErrorIs(t, err, ErrNoHostAvailable)
}

func TestHost_UnboundHostIgnoresCallbacks(t *testing.T) {
	h := NewHost("loose", "Loose")
	assert.NotPanics(t, func() { frame(h, 1) })
	assert.Equal(t, uint64(0), h.Frame())
	assert.False(t, h.StopTask(nil))
}

func TestHost_ListenersRunBeforeTasksOnSameChannel(t *testing.T) {
	f := newFixture()
	h := f.host(t)
	var log []string
	f.hub.OnTick().Subscribe(dispatch.Func("listener", func(dispatch.Event) {
		log = append(log, "listener")
	}))
	_, err := f.tasks.Start("task", func(yield func(coroutine.Wait) bool) {
		if yield(coroutine.NextTick()) {
			log = append(log, "task")
		}
	})
	require.NoError(t, err)

	frame(h, 0)

	assert.Equal(t, []string{"listener", "task"}, log)
}

func TestRecreatePolicy_Parse(t *testing.T) {
	tests := []struct {
		in      string
		want    RecreatePolicy
		wantErr bool
	}{
		{"", Recreate, false},
		{"recreate", Recreate, false},
		{" FAIL ", FailAfterDestroy, false},
		{"never", Recreate, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) RecreatePolicy {
	t.Helper()
	p, err := ParsePolicy(s)
	require.NoError(t, err)
	return p
}

func TestRuntimeError_Format(t *testing.T) {
	err := NewNoHostError("gone", "id-0001")
	assert.Equal(t, "NO_HOST_AVAILABLE: no host available (host=id-0001)", err.Error())
	assert.Equal(t, "gone", err.Details["reason"])

	re := NewReentrantCreationError("[Core]")
	assert.Equal(t, `REENTRANT_HOST_CREATION: creation of host "[Core]" re-entered from inside its own creation`, re.Error())
}
