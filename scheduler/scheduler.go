/*
Package scheduler runs tracking jobs with bounded concurrency.

Queued jobs are dequeued in FIFO order by a fixed pool of workers, each
of which owns one job start-to-finish. The pool size bounds concurrent
calls to the external tracker, which is the actual rate-limited
resource; on top of that a token-bucket limiter paces individual
outbound calls across all workers.

Per-item failures are recorded in the job's results and never abort the
run. Only a protocol-level tracker failure (the scraping backend cannot
be invoked at all) fails the job as a whole.
*/
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/academy-ops/rank-tracking-backend/monitoring"
	"github.com/academy-ops/rank-tracking-backend/store"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned when the scheduler cannot accept more jobs
var ErrQueueFull = errors.New("scheduler queue full")

// ErrTrackerUnavailable marks a protocol-level tracker failure. Trackers
// wrap it when the scraping backend cannot be invoked at all, which
// fails the whole job rather than a single item.
var ErrTrackerUnavailable = errors.New("tracker unavailable")

// TrackError is a per-item business failure reported by the tracker.
// It is recorded in the job's results and never aborts the run.
type TrackError struct {
	Message string
}

func (e *TrackError) Error() string {
	return e.Message
}

// Tracker is the external tracking collaborator. The returned payload
// is opaque to the backend and attached verbatim to the item outcome.
type Tracker interface {
	Track(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error)
}

// job is one unit of queued work: the store record id plus the keywords
// the store does not hold
type job struct {
	id       string
	userID   string
	jobType  types.JobType
	keywords []string
}

// Config holds scheduler tuning knobs
type Config struct {
	Workers     int
	QueueSize   int
	ItemTimeout time.Duration
	// Outbound tracker call pacing across all workers
	TrackRatePerSecond float64
	TrackBurst         int
}

// Scheduler is the bounded worker pool executing tracking jobs
type Scheduler struct {
	jobs    *store.JobStore
	logs    *store.LogRing
	tracker Tracker
	logger  *logrus.Logger

	queue       chan job
	quit        chan struct{}
	wg          sync.WaitGroup
	submitMu    sync.Mutex
	workers     int
	itemTimeout time.Duration
	limiter     *rate.Limiter
	started     bool
	startMu     sync.Mutex
}

// New creates a scheduler; call Start to launch the workers
func New(jobs *store.JobStore, logs *store.LogRing, tracker Tracker, cfg Config, logger *logrus.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 50
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 15 * time.Second
	}
	if cfg.TrackRatePerSecond <= 0 {
		cfg.TrackRatePerSecond = 5
	}
	if cfg.TrackBurst <= 0 {
		cfg.TrackBurst = 1
	}

	return &Scheduler{
		jobs:        jobs,
		logs:        logs,
		tracker:     tracker,
		logger:      logger,
		queue:       make(chan job, cfg.QueueSize),
		quit:        make(chan struct{}),
		workers:     cfg.Workers,
		itemTimeout: cfg.ItemTimeout,
		limiter:     rate.NewLimiter(rate.Limit(cfg.TrackRatePerSecond), cfg.TrackBurst),
	}
}

// Start launches the worker pool
func (s *Scheduler) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	monitoring.UpdateActiveWorkers(s.workers)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.WithField("workers", s.workers).Info("Scheduler started")
}

// Running reports whether the worker pool has been started
func (s *Scheduler) Running() bool {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.started
}

// Stop shuts the pool down. Jobs already picked up by a worker run to
// completion; jobs still queued stay queued in the store.
func (s *Scheduler) Stop() {
	s.startMu.Lock()
	if !s.started {
		s.startMu.Unlock()
		return
	}
	s.startMu.Unlock()

	close(s.quit)
	s.wg.Wait()
	monitoring.UpdateActiveWorkers(0)
	s.logger.Info("Scheduler stopped")
}

// Enqueue validates the request, creates the store record in the queued
// state, and places the job on the FIFO queue. Jobs for the same user
// and type are intentionally independent: no deduplication is applied.
func (s *Scheduler) Enqueue(userID, userName, userEmail string, jobType types.JobType, keywords []string) (string, error) {
	// Capacity check and channel send happen under one mutex so a
	// created store record always gets queue space.
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if len(s.queue) == cap(s.queue) {
		return "", ErrQueueFull
	}

	record, err := s.jobs.Enqueue(userID, userName, userEmail, jobType, len(keywords))
	if err != nil {
		return "", err
	}

	s.queue <- job{
		id:       record.ID,
		userID:   userID,
		jobType:  jobType,
		keywords: keywords,
	}
	monitoring.UpdateQueueSize(len(s.queue))

	s.logger.WithFields(logrus.Fields{
		"job_id":   record.ID,
		"user_id":  userID,
		"type":     jobType,
		"keywords": len(keywords),
	}).Info("Tracking job enqueued")

	return record.ID, nil
}

// QueueLoad returns the current queue fill ratio, used by alert rules
func (s *Scheduler) QueueLoad() float64 {
	return float64(len(s.queue)) / float64(cap(s.queue))
}

// worker processes jobs one at a time until Stop is called
func (s *Scheduler) worker(workerID int) {
	defer s.wg.Done()

	s.logger.WithField("worker_id", workerID).Info("Tracking worker started")

	for {
		select {
		case <-s.quit:
			s.logger.WithField("worker_id", workerID).Info("Tracking worker stopping")
			return
		case j := <-s.queue:
			monitoring.UpdateQueueSize(len(s.queue))
			s.runJob(workerID, j)
		}
	}
}

// runJob executes one job start-to-finish. The context is detached from
// shutdown: in-flight jobs drain rather than abort, since cancellation
// of running jobs is not supported.
func (s *Scheduler) runJob(workerID int, j job) {
	ctx := context.Background()
	start := time.Now()

	if _, err := s.jobs.MarkRunning(j.id); err != nil {
		s.logger.WithError(err).WithField("job_id", j.id).Error("Failed to mark job running")
		return
	}

	s.logs.Append(types.LogLevelInfo, types.LogCategoryTracking,
		fmt.Sprintf("Started %s tracking job with %d keywords", j.jobType, len(j.keywords)),
		map[string]interface{}{"job_id": j.id, "worker_id": workerID}, j.userID)

	results := types.JobResults{Details: make([]types.ItemOutcome, 0, len(j.keywords))}

	for i, keyword := range j.keywords {
		outcome, fatal := s.trackItem(ctx, j, keyword)
		if fatal != nil {
			s.failJob(j, fatal, start)
			return
		}

		if outcome.Success {
			results.SuccessCount++
		} else {
			results.FailedCount++
		}
		results.Details = append(results.Details, outcome)

		if _, err := s.jobs.RecordProgress(j.id, uint(i+1), keyword); err != nil {
			s.logger.WithError(err).WithField("job_id", j.id).Error("Failed to record progress")
		}
	}

	if _, err := s.jobs.Complete(j.id, results); err != nil {
		s.logger.WithError(err).WithField("job_id", j.id).Error("Failed to complete job")
		return
	}

	monitoring.RecordJob(string(j.jobType), "completed", time.Since(start).Seconds(), len(j.keywords))

	s.logs.Append(types.LogLevelInfo, types.LogCategoryTracking,
		fmt.Sprintf("Completed %s tracking job: %d succeeded, %d failed", j.jobType, results.SuccessCount, results.FailedCount),
		map[string]interface{}{"job_id": j.id, "duration_ms": time.Since(start).Milliseconds()}, j.userID)
}

// trackItem performs one tracker call with pacing and a per-item
// timeout. A non-nil fatal error means the tracker is unreachable and
// the whole job must fail.
func (s *Scheduler) trackItem(ctx context.Context, j job, keyword string) (types.ItemOutcome, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return types.ItemOutcome{}, fmt.Errorf("rate limiter: %w", err)
	}

	itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.tracker.Track(itemCtx, j.jobType, keyword)
	duration := time.Since(start).Seconds()

	switch {
	case err == nil:
		monitoring.RecordItemTrack(string(j.jobType), "success", duration)
		return types.ItemOutcome{Keyword: keyword, Success: true, Result: result}, nil

	case errors.Is(err, ErrTrackerUnavailable):
		monitoring.RecordItemTrack(string(j.jobType), "unavailable", duration)
		return types.ItemOutcome{}, err

	case errors.Is(err, context.DeadlineExceeded):
		monitoring.RecordItemTrack(string(j.jobType), "timeout", duration)
		return types.ItemOutcome{Keyword: keyword, Success: false, Error: "tracking timed out"}, nil

	default:
		// Per-item business failure, including *TrackError
		monitoring.RecordItemTrack(string(j.jobType), "failed", duration)
		return types.ItemOutcome{Keyword: keyword, Success: false, Error: err.Error()}, nil
	}
}

func (s *Scheduler) failJob(j job, cause error, start time.Time) {
	if _, err := s.jobs.Fail(j.id, cause.Error()); err != nil {
		s.logger.WithError(err).WithField("job_id", j.id).Error("Failed to mark job failed")
		return
	}

	monitoring.RecordJob(string(j.jobType), "failed", time.Since(start).Seconds(), len(j.keywords))

	s.logs.Append(types.LogLevelError, types.LogCategoryScraper,
		fmt.Sprintf("Tracking job aborted: %s", cause.Error()),
		map[string]interface{}{"job_id": j.id}, j.userID)
}
