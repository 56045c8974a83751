package dispatch

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietHub() *Hub {
	return NewHub(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestHub_ChannelsAreIndependent(t *testing.T) {
	h := quietHub()
	var calls []string
	mk := recorder(&calls)

	h.OnTick().Subscribe(mk("tick"))
	h.OnFixedTick().Subscribe(mk("fixed"))
	h.OnPostTick().Subscribe(mk("post"))

	h.DispatchPostTick(Event{})
	h.DispatchFixedTick(Event{})
	h.DispatchTick(Event{})

	assert.Equal(t, []string{"post", "fixed", "tick"}, calls)
	assert.Equal(t, 1, h.Len(Tick))
	assert.Equal(t, 1, h.Len(FixedTick))
	assert.Equal(t, 1, h.Len(PostTick))
}

func TestHub_SimulatedCycleCounts(t *testing.T) {
	h := quietHub()
	var order []Channel
	counts := map[Channel]int{}
	for _, ch := range Channels {
		h.On(ch).Subscribe(Func(ch.String(), func(ev Event) {
			counts[ev.Channel]++
			order = append(order, ev.Channel)
		}))
	}

	h.DispatchFixedTick(Event{Step: 0})
	h.DispatchFixedTick(Event{Step: 1})
	h.DispatchTick(Event{})
	h.DispatchPostTick(Event{})

	assert.Equal(t, 2, counts[FixedTick])
	assert.Equal(t, 1, counts[Tick])
	assert.Equal(t, 1, counts[PostTick])
	assert.Equal(t, []Channel{FixedTick, FixedTick, Tick, PostTick}, order)
}

func TestHub_StampsChannelAndSeq(t *testing.T) {
	h := quietHub()
	var seen []Event
	rec := Func("rec", func(ev Event) { seen = append(seen, ev) })
	h.OnTick().Subscribe(rec)
	h.OnPostTick().Subscribe(rec)

	h.DispatchTick(Event{Channel: PostTick, Frame: 3})
	h.DispatchPostTick(Event{Frame: 3})

	require.Len(t, seen, 2)
	assert.Equal(t, Tick, seen[0].Channel, "hub overrides the caller's channel")
	assert.Equal(t, PostTick, seen[1].Channel)
	assert.Equal(t, int64(1), seen[0].Seq)
	assert.Equal(t, int64(2), seen[1].Seq)
	assert.Equal(t, uint64(3), seen[1].Frame)
}

func TestHub_SharedClock(t *testing.T) {
	clock := NewClockAt(41)
	h := NewHub(WithClock(clock))

	h.DispatchTick(Event{})
	assert.Equal(t, int64(42), clock.Current())
	assert.Same(t, clock, h.Clock())
}

func TestHub_LogsListenerFailures(t *testing.T) {
	var buf bytes.Buffer
	h := NewHub(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	h.OnTick().Subscribe(NewListener("flaky", func(Event) error {
		return errors.New("out of mana")
	}))
	ran := false
	h.OnTick().Subscribe(Func("steady", func(Event) { ran = true }))

	result := h.DispatchTick(Event{Frame: 12})

	assert.True(t, ran)
	require.Len(t, result.Failures, 1)
	out := buf.String()
	assert.Contains(t, out, "listener failed")
	assert.Contains(t, out, "listener=flaky")
	assert.Contains(t, out, "channel=tick")
	assert.Contains(t, out, "frame=12")
	assert.Contains(t, out, "out of mana")
}

func TestHub_Clear(t *testing.T) {
	h := quietHub()
	for _, ch := range Channels {
		h.On(ch).Subscribe(Func("x", nil))
	}

	h.Clear()

	for _, ch := range Channels {
		assert.Equal(t, 0, h.Len(ch), "channel %s", ch)
	}
}

func TestHub_InvalidChannelPanics(t *testing.T) {
	h := quietHub()
	assert.Panics(t, func() { h.On(Channel(0)) })
}

func TestSubscriptions_SubscribeOnce(t *testing.T) {
	h := quietHub()
	var calls []string
	mk := recorder(&calls)

	h.OnTick().Subscribe(mk("steady"))
	wrapper := h.OnTick().SubscribeOnce(mk("once"), false)
	require.NotNil(t, wrapper)
	assert.Equal(t, "once", wrapper.Name())

	h.DispatchTick(Event{})
	h.DispatchTick(Event{})

	assert.Equal(t, []string{"steady", "once", "steady"}, calls)
	assert.False(t, h.OnTick().Contains(wrapper))
}

func TestSubscriptions_SubscribeOnceRemovingOthers(t *testing.T) {
	h := quietHub()
	var calls []string
	mk := recorder(&calls)

	h.OnTick().Subscribe(mk("old"))
	h.OnTick().SubscribeOnce(mk("once"), true)

	h.DispatchTick(Event{})
	h.DispatchTick(Event{})

	assert.Equal(t, []string{"once"}, calls)
	assert.Equal(t, 0, h.Len(Tick))
}

func TestSubscriptions_SubscribeOnceCancelled(t *testing.T) {
	h := quietHub()
	var calls []string
	mk := recorder(&calls)

	wrapper := h.OnPostTick().SubscribeOnce(mk("once"), false)
	h.OnPostTick().Unsubscribe(wrapper)

	h.DispatchPostTick(Event{})
	assert.Empty(t, calls)
	assert.Nil(t, h.OnPostTick().SubscribeOnce(nil, false))
}

func TestSubscriptions_SubscribeOnly(t *testing.T) {
	h := quietHub()
	var calls []string
	mk := recorder(&calls)

	h.OnFixedTick().Subscribe(mk("A"))
	h.OnFixedTick().Subscribe(mk("B"))
	h.OnFixedTick().SubscribeOnly(mk("C"))

	h.DispatchFixedTick(Event{})

	assert.Equal(t, []string{"C"}, calls)
	assert.Equal(t, FixedTick, h.OnFixedTick().Channel())
	assert.Equal(t, 1, h.OnFixedTick().Len())
}
