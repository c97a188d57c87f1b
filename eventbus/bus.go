/*
Package eventbus provides the in-process pub/sub that turns job and log
mutations into typed events and fans them out to stream subscribers.

Every published event is stamped with a monotonically increasing sequence
number and retained in a bounded replay ring. Subscribers receive buffered
events newer than the sequence they ask for, then live events. A slow
subscriber never stalls publication: its outbound queue drops the oldest
pending event on overflow, which is safe because every event is a
supersedable snapshot reconcilable against a fresh initial_state.
*/
package eventbus

import (
	"sync"
	"time"

	"github.com/academy-ops/rank-tracking-backend/monitoring"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the replay ring size used when none is configured
const DefaultCapacity = 200

// DefaultSubscriberBuffer is the per-subscriber outbound queue size
const DefaultSubscriberBuffer = 64

// Subscription is a live handle onto the bus. Events arrive on C until
// Unsubscribe is called, at which point C is closed.
type Subscription struct {
	ID string
	C  <-chan types.Event

	// NeedsResync is set when the requested afterSequence is older than
	// the oldest buffered event; the subscriber holds an incomplete
	// history and must request a fresh initial_state snapshot instead.
	NeedsResync bool

	ch chan types.Event
}

// Bus is the broadcast event bus
type Bus struct {
	mu       sync.Mutex
	seq      uint64
	ring     []types.Event
	capacity int
	bufSize  int
	subs     map[string]*Subscription
	logger   *logrus.Logger
}

// New creates a bus with the given replay-ring capacity and
// per-subscriber queue size; non-positive values fall back to defaults
func New(capacity, subscriberBuffer int, logger *logrus.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Bus{
		ring:     make([]types.Event, 0, capacity),
		capacity: capacity,
		bufSize:  subscriberBuffer,
		subs:     make(map[string]*Subscription),
		logger:   logger,
	}
}

// Publish stamps the event with the next sequence number and the current
// time, appends it to the replay ring, and fans it out to all current
// subscribers without blocking. Returns the assigned sequence.
func (b *Bus) Publish(evt types.Event) uint64 {
	b.mu.Lock()

	b.seq++
	evt.Sequence = b.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if len(b.ring) == b.capacity {
		b.ring = b.ring[1:]
	}
	b.ring = append(b.ring, evt)

	// Fan-out happens under the lock: Unsubscribe closes channels under
	// the same lock, so a send can never race a close. Every send is
	// non-blocking, so holding the lock cannot stall publication.
	for _, sub := range b.subs {
		b.offer(sub, evt)
	}
	b.mu.Unlock()

	monitoring.RecordEventPublished(string(evt.Type))

	return evt.Sequence
}

// offer delivers without blocking; on a full queue the oldest pending
// event is dropped to make room, since newer state supersedes it.
// Callers must hold b.mu.
func (b *Bus) offer(sub *Subscription, evt types.Event) {
	select {
	case sub.ch <- evt:
		return
	default:
	}

	select {
	case <-sub.ch:
	default:
	}

	select {
	case sub.ch <- evt:
	default:
	}

	monitoring.RecordEventDropped()
	if b.logger != nil {
		b.logger.WithFields(logrus.Fields{
			"subscriber": sub.ID,
			"sequence":   evt.Sequence,
			"event_type": evt.Type,
		}).Warn("Subscriber queue full, dropped oldest pending event")
	}
}

// Subscribe registers a new subscriber. Buffered events with a sequence
// greater than afterSequence are replayed onto the channel before any
// live event; if that range has already been evicted from the ring the
// subscription is flagged NeedsResync and replay is skipped.
func (b *Bus) Subscribe(afterSequence uint64) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	var replay []types.Event
	needsResync := false

	if b.seq > afterSequence {
		if len(b.ring) == 0 || b.ring[0].Sequence > afterSequence+1 {
			needsResync = true
		} else {
			for _, evt := range b.ring {
				if evt.Sequence > afterSequence {
					replay = append(replay, evt)
				}
			}
		}
	}

	ch := make(chan types.Event, b.bufSize+len(replay))
	for _, evt := range replay {
		ch <- evt
	}

	sub := &Subscription{
		ID:          uuid.NewString(),
		C:           ch,
		NeedsResync: needsResync,
		ch:          ch,
	}
	b.subs[sub.ID] = sub

	monitoring.UpdateBusSubscribers(len(b.subs))
	return sub
}

// Unsubscribe removes the subscriber and closes its channel
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)

	monitoring.UpdateBusSubscribers(len(b.subs))
}

// CurrentSequence returns the sequence of the most recently published event
func (b *Bus) CurrentSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// OldestBuffered returns the sequence of the oldest event still held in
// the replay ring, or 0 when the ring is empty
func (b *Bus) OldestBuffered() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ring) == 0 {
		return 0
	}
	return b.ring[0].Sequence
}

// SubscriberCount returns the number of registered subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
