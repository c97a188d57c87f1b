package store

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

// fakeBus records published events for assertions
type fakeBus struct {
	mu     sync.Mutex
	seq    uint64
	events []types.Event
}

func (f *fakeBus) Publish(evt types.Event) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	evt.Sequence = f.seq
	f.events = append(f.events, evt)
	return f.seq
}

func (f *fakeBus) byType(t types.EventType) []types.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Event
	for _, evt := range f.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore() (*JobStore, *fakeBus) {
	bus := &fakeBus{}
	return NewJobStore(bus, nil, testLogger()), bus
}

func TestEnqueueCreatesQueuedJob(t *testing.T) {
	s, bus := newTestStore()

	job, err := s.Enqueue("user-1", "Tester", "tester@example.com", types.JobTypeSmartPlace, 3)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	assert.Equal(t, uint(0), job.Progress.Current)
	assert.Equal(t, uint(3), job.Progress.Total)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.Results)

	added := bus.byType(types.EventTypeJobUpdate)
	require.Len(t, added, 1)
	assert.Equal(t, types.JobActionAdded, added[0].Action)
	assert.Equal(t, job.ID, added[0].Job.ID)

	assert.Len(t, bus.byType(types.EventTypeStatusUpdate), 1)
}

func TestEnqueueValidation(t *testing.T) {
	s, _ := newTestStore()

	tests := []struct {
		name      string
		jobType   types.JobType
		itemCount int
	}{
		{"zero items", types.JobTypeSmartPlace, 0},
		{"negative items", types.JobTypeBlog, -1},
		{"unknown type", types.JobType("shopping"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Enqueue("user-1", "", "", tt.jobType, tt.itemCount)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestGetUnknownJob(t *testing.T) {
	s, _ := newTestStore()

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	s, _ := newTestStore()

	created, err := s.Enqueue("user-1", "", "", types.JobTypeBlog, 2)
	require.NoError(t, err)

	got, err := s.Get(created.ID)
	require.NoError(t, err)

	got.Status = types.JobStatusFailed
	got.Progress.Current = 99

	fresh, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, fresh.Status)
	assert.Equal(t, uint(0), fresh.Progress.Current)
}

func TestStateMachineTransitions(t *testing.T) {
	s, _ := newTestStore()

	job, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 2)
	require.NoError(t, err)

	// queued -> completed is illegal without running
	_, err = s.Complete(job.ID, types.JobResults{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	running, err := s.MarkRunning(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusRunning, running.Status)
	require.NotNil(t, running.StartedAt)

	// running -> running is illegal
	_, err = s.MarkRunning(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, err := s.Complete(job.ID, types.JobResults{SuccessCount: 2})
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Results)
	assert.Equal(t, uint(2), done.Results.SuccessCount)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	s, _ := newTestStore()

	job, err := s.Enqueue("user-1", "", "", types.JobTypeBlog, 1)
	require.NoError(t, err)
	_, err = s.MarkRunning(job.ID)
	require.NoError(t, err)
	_, err = s.Fail(job.ID, "scraper down")
	require.NoError(t, err)

	_, err = s.MarkRunning(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Complete(job.ID, types.JobResults{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Fail(job.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.RecordProgress(job.ID, 1, "kw")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	failed, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "scraper down", failed.Error.Message)
}

func TestRecordProgress(t *testing.T) {
	s, bus := newTestStore()

	job, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 3)
	require.NoError(t, err)
	_, err = s.MarkRunning(job.ID)
	require.NoError(t, err)

	updated, err := s.RecordProgress(job.ID, 2, "coffee shop")
	require.NoError(t, err)
	assert.Equal(t, uint(2), updated.Progress.Current)
	assert.Equal(t, "coffee shop", updated.Progress.CurrentItemLabel)

	// Progress never exceeds the fixed total
	_, err = s.RecordProgress(job.ID, 4, "kw")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var progressEvents int
	for _, evt := range bus.byType(types.EventTypeJobUpdate) {
		if evt.Action == types.JobActionProgress {
			progressEvents++
		}
	}
	assert.Equal(t, 1, progressEvents)
}

func TestListAllOrdersNewestFirst(t *testing.T) {
	s, _ := newTestStore()

	first, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 1)
	require.NoError(t, err)
	_, err = s.MarkRunning(first.ID)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	second, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 1)
	require.NoError(t, err)
	_, err = s.MarkRunning(second.ID)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	// Still queued, so it has no start time and sorts first
	queued, err := s.Enqueue("user-1", "", "", types.JobTypeBlog, 1)
	require.NoError(t, err)

	jobs := s.ListAll(0)
	require.Len(t, jobs, 3)
	assert.Equal(t, queued.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)
	assert.Equal(t, first.ID, jobs[2].ID)

	limited := s.ListAll(2)
	assert.Len(t, limited, 2)
}

func TestListActiveExcludesTerminalJobs(t *testing.T) {
	s, _ := newTestStore()

	done, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 1)
	require.NoError(t, err)
	_, err = s.MarkRunning(done.ID)
	require.NoError(t, err)
	_, err = s.Complete(done.ID, types.JobResults{SuccessCount: 1})
	require.NoError(t, err)

	active, err := s.Enqueue("user-1", "", "", types.JobTypeBlog, 1)
	require.NoError(t, err)

	jobs := s.ListActive()
	require.Len(t, jobs, 1)
	assert.Equal(t, active.ID, jobs[0].ID)
}

func TestStatsErrorRate(t *testing.T) {
	s, _ := newTestStore()

	assert.Equal(t, "0.0%", s.Stats().ErrorRate)

	// Five jobs, one failed: 20.0%
	for i := 0; i < 5; i++ {
		job, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 1)
		require.NoError(t, err)
		_, err = s.MarkRunning(job.ID)
		require.NoError(t, err)
		if i == 0 {
			_, err = s.Fail(job.ID, "boom")
		} else {
			_, err = s.Complete(job.ID, types.JobResults{SuccessCount: 1})
		}
		require.NoError(t, err)
	}

	stats := s.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, "20.0%", stats.ErrorRate)
	assert.Equal(t, 5, stats.Last24h.Total)
	assert.Equal(t, 4, stats.Last24h.Completed)
	assert.Equal(t, 1, stats.Last24h.Failed)
}

func TestTerminalTransitionPublishesStatusUpdate(t *testing.T) {
	s, bus := newTestStore()

	job, err := s.Enqueue("user-1", "", "", types.JobTypeSmartPlace, 1)
	require.NoError(t, err)
	_, err = s.MarkRunning(job.ID)
	require.NoError(t, err)
	_, err = s.Complete(job.ID, types.JobResults{SuccessCount: 1})
	require.NoError(t, err)

	// enqueue, running and completed each publish one
	updates := bus.byType(types.EventTypeStatusUpdate)
	require.Len(t, updates, 3)

	last := updates[len(updates)-1]
	require.NotNil(t, last.Stats)
	assert.Equal(t, 1, last.Stats.Completed)
	assert.Empty(t, last.ActiveJobs)
}
