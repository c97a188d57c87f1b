package store

import (
	"sync"
	"time"

	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/academy-ops/rank-tracking-backend/utils"
	"github.com/sirupsen/logrus"
)

// DefaultLogRingCapacity is the canonical "recent logs" window size
const DefaultLogRingCapacity = 100

// LogRing is the bounded, newest-first ring of recent system log
// entries. Appends publish log_update events; entries pushed out of the
// ring are handed to the archiver when one is configured.
type LogRing struct {
	mu       sync.RWMutex
	entries  []types.SystemLogEntry
	capacity int
	bus      Publisher
	archiver Archiver
	logger   *logrus.Logger
}

// NewLogRing creates a ring with the given capacity; non-positive
// values fall back to DefaultLogRingCapacity
func NewLogRing(capacity int, bus Publisher, archiver Archiver, logger *logrus.Logger) *LogRing {
	if capacity <= 0 {
		capacity = DefaultLogRingCapacity
	}
	return &LogRing{
		entries:  make([]types.SystemLogEntry, 0, capacity),
		capacity: capacity,
		bus:      bus,
		archiver: archiver,
		logger:   logger,
	}
}

// Append records a new entry at the front of the ring and publishes a
// log_update event
func (r *LogRing) Append(level types.LogLevel, category types.LogCategory, message string, details map[string]interface{}, userID string) types.SystemLogEntry {
	entry := types.SystemLogEntry{
		ID:        utils.NewID(),
		Level:     level,
		Category:  category,
		Message:   message,
		Details:   details,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}

	var evicted []types.SystemLogEntry

	r.mu.Lock()
	r.entries = append([]types.SystemLogEntry{entry}, r.entries...)
	if len(r.entries) > r.capacity {
		evicted = r.entries[r.capacity:]
		r.entries = r.entries[:r.capacity]
	}
	r.mu.Unlock()

	if r.archiver != nil && len(evicted) > 0 {
		go func() {
			for _, old := range evicted {
				if err := r.archiver.ArchiveLogEntry(old); err != nil && r.logger != nil {
					r.logger.WithError(err).WithField("log_id", old.ID).Warn("Failed to archive log entry")
				}
			}
		}()
	}

	if r.bus != nil {
		r.bus.Publish(types.Event{
			Type: types.EventTypeLogUpdate,
			Log:  &entry,
		})
	}

	return entry
}

// Recent returns up to limit entries, newest first. limit <= 0 returns
// the whole ring.
func (r *LogRing) Recent(limit int) []types.SystemLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.SystemLogEntry, n)
	copy(out, r.entries[:n])
	return out
}

// Len returns the number of entries currently held
func (r *LogRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
