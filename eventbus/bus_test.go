package eventbus

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPublishAssignsMonotonicSequences(t *testing.T) {
	bus := New(10, 10, testLogger())

	var last uint64
	for i := 0; i < 5; i++ {
		seq := bus.Publish(types.Event{Type: types.EventTypeLogUpdate})
		assert.Greater(t, seq, last, "sequence must strictly increase")
		last = seq
	}

	assert.Equal(t, uint64(5), bus.CurrentSequence())
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := New(10, 10, testLogger())

	sub := bus.Subscribe(0)
	defer bus.Unsubscribe(sub.ID)

	bus.Publish(types.Event{Type: types.EventTypeLogUpdate})

	evt := <-sub.C
	assert.False(t, evt.Timestamp.IsZero())
}

func TestSubscribeReplaysBufferedEvents(t *testing.T) {
	bus := New(10, 10, testLogger())

	for i := 0; i < 3; i++ {
		bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
	}

	sub := bus.Subscribe(0)
	defer bus.Unsubscribe(sub.ID)

	require.False(t, sub.NeedsResync)
	for want := uint64(1); want <= 3; want++ {
		evt := <-sub.C
		assert.Equal(t, want, evt.Sequence)
	}
}

func TestSubscribeReplaysOnlyAfterRequestedSequence(t *testing.T) {
	bus := New(10, 10, testLogger())

	for i := 0; i < 5; i++ {
		bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
	}

	sub := bus.Subscribe(3)
	defer bus.Unsubscribe(sub.ID)

	require.False(t, sub.NeedsResync)
	assert.Equal(t, uint64(4), (<-sub.C).Sequence)
	assert.Equal(t, uint64(5), (<-sub.C).Sequence)
	assert.Empty(t, sub.C)
}

func TestSubscribeAtCurrentSequenceSkipsReplay(t *testing.T) {
	bus := New(10, 10, testLogger())

	bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
	bus.Publish(types.Event{Type: types.EventTypeJobUpdate})

	sub := bus.Subscribe(bus.CurrentSequence())
	defer bus.Unsubscribe(sub.ID)

	require.False(t, sub.NeedsResync)
	assert.Empty(t, sub.C)

	bus.Publish(types.Event{Type: types.EventTypeStatusUpdate})
	assert.Equal(t, uint64(3), (<-sub.C).Sequence)
}

func TestSubscribeDetectsGapAfterEviction(t *testing.T) {
	bus := New(100, 10, testLogger())

	// Fill well past the ring capacity so early events are evicted
	for i := 0; i < 150; i++ {
		bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
	}

	sub := bus.Subscribe(0)
	defer bus.Unsubscribe(sub.ID)

	assert.True(t, sub.NeedsResync, "evicted history must force a resync")
	assert.Empty(t, sub.C, "no partial replay on a gap")
	assert.Equal(t, uint64(51), bus.OldestBuffered())
}

func TestSlowSubscriberDropsOldestNotNewest(t *testing.T) {
	bus := New(10, 2, testLogger())

	sub := bus.Subscribe(0)
	defer bus.Unsubscribe(sub.ID)

	// No draining: the third publish must evict the first pending event
	bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
	bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
	bus.Publish(types.Event{Type: types.EventTypeJobUpdate})

	assert.Equal(t, uint64(2), (<-sub.C).Sequence)
	assert.Equal(t, uint64(3), (<-sub.C).Sequence)
	assert.Empty(t, sub.C)
}

func TestPublishBroadcastsToAllSubscribers(t *testing.T) {
	bus := New(10, 10, testLogger())

	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = bus.Subscribe(0)
	}
	assert.Equal(t, 3, bus.SubscriberCount())

	bus.Publish(types.Event{Type: types.EventTypeStatusUpdate})

	for _, sub := range subs {
		evt := <-sub.C
		assert.Equal(t, types.EventTypeStatusUpdate, evt.Type)
		assert.Equal(t, uint64(1), evt.Sequence)
		bus.Unsubscribe(sub.ID)
	}
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(10, 10, testLogger())

	sub := bus.Subscribe(0)
	bus.Unsubscribe(sub.ID)

	_, open := <-sub.C
	assert.False(t, open)

	// Unsubscribing twice is a no-op
	assert.NotPanics(t, func() { bus.Unsubscribe(sub.ID) })
}

func TestPublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	bus := New(10, 10, testLogger())

	sub := bus.Subscribe(0)
	bus.Unsubscribe(sub.ID)

	assert.NotPanics(t, func() {
		bus.Publish(types.Event{Type: types.EventTypeLogUpdate})
	})
}

func TestPublishRacingUnsubscribeDoesNotPanic(t *testing.T) {
	bus := New(64, 4, testLogger())

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Continuous publishers stand in for scheduler workers pushing
	// job updates while clients churn
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					bus.Publish(types.Event{Type: types.EventTypeJobUpdate})
				}
			}
		}()
	}

	// Churners subscribe and immediately disconnect, the way stream
	// clients dropping mid-publish do
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					sub := bus.Subscribe(bus.CurrentSequence())
					bus.Unsubscribe(sub.ID)
				}
			}
		}()
	}

	time.Sleep(250 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount())
}
