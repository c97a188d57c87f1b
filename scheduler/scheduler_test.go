package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/academy-ops/rank-tracking-backend/store"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTracker delegates to a per-test function
type fakeTracker struct {
	fn func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error)
}

func (f *fakeTracker) Track(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
	return f.fn(ctx, jobType, keyword)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastConfig() Config {
	return Config{
		Workers:            1,
		QueueSize:          10,
		ItemTimeout:        time.Second,
		TrackRatePerSecond: 1000,
		TrackBurst:         10,
	}
}

func newTestScheduler(t *testing.T, tracker Tracker, cfg Config) (*Scheduler, *store.JobStore) {
	t.Helper()
	jobs := store.NewJobStore(nil, nil, testLogger())
	logs := store.NewLogRing(10, nil, nil, testLogger())
	sched := New(jobs, logs, tracker, cfg, testLogger())
	return sched, jobs
}

func waitForStatus(t *testing.T, jobs *store.JobStore, jobID string, want types.JobStatus) *types.TrackingJob {
	t.Helper()
	var job *types.TrackingJob
	require.Eventually(t, func() bool {
		got, err := jobs.Get(jobID)
		if err != nil {
			return false
		}
		job = got
		return got.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestRunJobCompletesWithMixedOutcomes(t *testing.T) {
	// Second keyword fails as a business error; the job still completes
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		if keyword == "missing keyword" {
			return nil, &TrackError{Message: "keyword not found"}
		}
		return json.RawMessage(`{"rank":3}`), nil
	}}

	sched, jobs := newTestScheduler(t, tracker, fastConfig())
	sched.Start()
	defer sched.Stop()

	jobID, err := sched.Enqueue("user-1", "Tester", "", types.JobTypeSmartPlace,
		[]string{"coffee shop", "missing keyword", "bakery"})
	require.NoError(t, err)

	job := waitForStatus(t, jobs, jobID, types.JobStatusCompleted)

	require.NotNil(t, job.Results)
	assert.Equal(t, uint(2), job.Results.SuccessCount)
	assert.Equal(t, uint(1), job.Results.FailedCount)
	require.Len(t, job.Results.Details, 3)

	assert.True(t, job.Results.Details[0].Success)
	assert.JSONEq(t, `{"rank":3}`, string(job.Results.Details[0].Result))
	assert.False(t, job.Results.Details[1].Success)
	assert.Equal(t, "keyword not found", job.Results.Details[1].Error)
	assert.True(t, job.Results.Details[2].Success)

	// Per-item failures still advance progress to completion
	assert.Equal(t, uint(3), job.Progress.Current)
	assert.Equal(t, uint(3), job.Progress.Total)
}

func TestRunJobFailsWhenTrackerUnavailable(t *testing.T) {
	var calls atomic.Int32
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		calls.Add(1)
		return nil, ErrTrackerUnavailable
	}}

	sched, jobs := newTestScheduler(t, tracker, fastConfig())
	sched.Start()
	defer sched.Stop()

	jobID, err := sched.Enqueue("user-1", "", "", types.JobTypeBlog, []string{"a", "b", "c"})
	require.NoError(t, err)

	job := waitForStatus(t, jobs, jobID, types.JobStatusFailed)

	require.NotNil(t, job.Error)
	assert.Contains(t, job.Error.Message, "tracker unavailable")
	assert.Nil(t, job.Results)
	// The first protocol failure aborts the run
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunJobRecordsTimedOutItems(t *testing.T) {
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		if keyword == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return json.RawMessage(`{"rank":1}`), nil
	}}

	cfg := fastConfig()
	cfg.ItemTimeout = 20 * time.Millisecond

	sched, jobs := newTestScheduler(t, tracker, cfg)
	sched.Start()
	defer sched.Stop()

	jobID, err := sched.Enqueue("user-1", "", "", types.JobTypeSmartPlace, []string{"slow", "fast"})
	require.NoError(t, err)

	job := waitForStatus(t, jobs, jobID, types.JobStatusCompleted)

	require.NotNil(t, job.Results)
	assert.Equal(t, uint(1), job.Results.SuccessCount)
	assert.Equal(t, uint(1), job.Results.FailedCount)
	assert.Equal(t, "tracking timed out", job.Results.Details[0].Error)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		return nil, nil
	}}

	cfg := fastConfig()
	cfg.QueueSize = 1

	// Workers not started, so the first job stays queued
	sched, jobs := newTestScheduler(t, tracker, cfg)

	first, err := sched.Enqueue("user-1", "", "", types.JobTypeSmartPlace, []string{"kw"})
	require.NoError(t, err)

	_, err = sched.Enqueue("user-1", "", "", types.JobTypeSmartPlace, []string{"kw"})
	assert.ErrorIs(t, err, ErrQueueFull)

	// The accepted job exists in the store, the rejected one does not
	job, err := jobs.Get(first)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	assert.Len(t, jobs.ListAll(0), 1)

	assert.Equal(t, 1.0, sched.QueueLoad())
}

func TestEnqueueValidationDoesNotCreateRecord(t *testing.T) {
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		return nil, nil
	}}
	sched, jobs := newTestScheduler(t, tracker, fastConfig())

	_, err := sched.Enqueue("user-1", "", "", types.JobType("shopping"), []string{"kw"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	assert.Empty(t, jobs.ListAll(0))
}

func TestDuplicateRequestsCreateIndependentJobs(t *testing.T) {
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		return json.RawMessage(`{"rank":1}`), nil
	}}
	sched, jobs := newTestScheduler(t, tracker, fastConfig())

	a, err := sched.Enqueue("user-1", "", "", types.JobTypeSmartPlace, []string{"kw"})
	require.NoError(t, err)
	b, err := sched.Enqueue("user-1", "", "", types.JobTypeSmartPlace, []string{"kw"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, jobs.ListAll(0), 2)
}

func TestStopLetsPickedUpJobsFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	tracker := &fakeTracker{fn: func(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
		close(started)
		<-release
		return json.RawMessage(`{"rank":1}`), nil
	}}

	sched, jobs := newTestScheduler(t, tracker, fastConfig())
	sched.Start()
	assert.True(t, sched.Running())

	jobID, err := sched.Enqueue("user-1", "", "", types.JobTypeSmartPlace, []string{"kw"})
	require.NoError(t, err)

	<-started

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	// Stop blocks until the in-flight job drains
	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	job, err := jobs.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, job.Status)
}
