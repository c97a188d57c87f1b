/*
Package store holds the durable record of every tracking job and its
lifecycle, the bounded ring of recent system log entries, and the
datastore archiver for terminal jobs.

The JobStore is the single writer-of-record: all mutation goes through
its update path, which enforces the job state machine (queued → running
→ completed | failed, terminals absorbing) and the progress invariant
(current ≤ total, total fixed at creation). Every committed mutation
publishes a corresponding event onto the bus before the call returns.
*/
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/academy-ops/rank-tracking-backend/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a job id is unknown
	ErrNotFound = errors.New("job not found")
	// ErrInvalidArgument is returned for enqueue requests that fail validation
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidTransition is returned for mutations that violate the job state machine
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Publisher is the slice of the event bus the store needs
type Publisher interface {
	Publish(types.Event) uint64
}

// JobStore is the in-memory writer-of-record for tracking jobs.
// A secondary index keeps the active-job view O(active count).
type JobStore struct {
	mu       sync.RWMutex
	jobs     map[string]*types.TrackingJob
	active   map[string]struct{}
	bus      Publisher
	archiver Archiver
	logger   *logrus.Logger
}

// NewJobStore creates a store publishing onto bus. archiver may be nil,
// in which case terminal jobs are kept in memory only.
func NewJobStore(bus Publisher, archiver Archiver, logger *logrus.Logger) *JobStore {
	return &JobStore{
		jobs:     make(map[string]*types.TrackingJob),
		active:   make(map[string]struct{}),
		bus:      bus,
		archiver: archiver,
		logger:   logger,
	}
}

// Enqueue creates a job in the queued state with progress {0, itemCount}.
// It publishes job_update{added} followed by a status_update.
func (s *JobStore) Enqueue(userID, userName, userEmail string, jobType types.JobType, itemCount int) (*types.TrackingJob, error) {
	if itemCount <= 0 {
		return nil, fmt.Errorf("%w: item count must be positive", ErrInvalidArgument)
	}
	if !types.ValidJobType(jobType) {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidArgument, jobType)
	}

	job := &types.TrackingJob{
		ID:        utils.NewID(),
		UserID:    userID,
		UserName:  userName,
		UserEmail: userEmail,
		Type:      jobType,
		Status:    types.JobStatusQueued,
		Progress:  types.Progress{Current: 0, Total: uint(itemCount)},
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.active[job.ID] = struct{}{}
	snapshot := job.Clone()
	s.mu.Unlock()

	s.publishJobUpdate(snapshot, types.JobActionAdded)
	s.publishStatusUpdate()

	return snapshot, nil
}

// Get returns a copy of the job or ErrNotFound
func (s *JobStore) Get(jobID string) (*types.TrackingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return job.Clone(), nil
}

// ListAll returns up to limit jobs, newest first by start time; jobs that
// have not started yet (still queued) sort first as most recent.
// limit <= 0 means no limit.
func (s *JobStore) ListAll(limit int) []*types.TrackingJob {
	s.mu.RLock()
	jobs := make([]*types.TrackingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		switch {
		case a.StartedAt == nil && b.StartedAt == nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a.StartedAt == nil:
			return true
		case b.StartedAt == nil:
			return false
		default:
			return a.StartedAt.After(*b.StartedAt)
		}
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// ListActive returns jobs in the queued or running state via the
// secondary index, newest first by creation time
func (s *JobStore) ListActive() []*types.TrackingJob {
	s.mu.RLock()
	jobs := make([]*types.TrackingJob, 0, len(s.active))
	for id := range s.active {
		if job, ok := s.jobs[id]; ok {
			jobs = append(jobs, job.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// MarkRunning transitions a queued job to running and records its start time
func (s *JobStore) MarkRunning(jobID string) (*types.TrackingJob, error) {
	snapshot, err := s.update(jobID, func(job *types.TrackingJob) error {
		if job.Status != types.JobStatusQueued {
			return fmt.Errorf("%w: %s -> running", ErrInvalidTransition, job.Status)
		}
		now := time.Now().UTC()
		job.Status = types.JobStatusRunning
		job.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishJobUpdate(snapshot, types.JobActionUpdated)
	s.publishStatusUpdate()
	return snapshot, nil
}

// RecordProgress advances a running job's item counter. This is the
// highest-frequency mutation, so it publishes only the cheap
// job_update{progress} event and never recomputes aggregate stats.
func (s *JobStore) RecordProgress(jobID string, current uint, itemLabel string) (*types.TrackingJob, error) {
	snapshot, err := s.update(jobID, func(job *types.TrackingJob) error {
		if job.Status != types.JobStatusRunning {
			return fmt.Errorf("%w: progress on %s job", ErrInvalidTransition, job.Status)
		}
		if current > job.Progress.Total {
			return fmt.Errorf("%w: progress %d exceeds total %d", ErrInvalidArgument, current, job.Progress.Total)
		}
		job.Progress.Current = current
		job.Progress.CurrentItemLabel = itemLabel
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishJobUpdate(snapshot, types.JobActionProgress)
	return snapshot, nil
}

// Complete transitions a running job to completed and attaches its
// results. Results are set exactly once, here.
func (s *JobStore) Complete(jobID string, results types.JobResults) (*types.TrackingJob, error) {
	snapshot, err := s.update(jobID, func(job *types.TrackingJob) error {
		if job.Status != types.JobStatusRunning {
			return fmt.Errorf("%w: %s -> completed", ErrInvalidTransition, job.Status)
		}
		now := time.Now().UTC()
		job.Status = types.JobStatusCompleted
		job.Results = &results
		job.CompletedAt = &now
		job.Progress.CurrentItemLabel = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishJobUpdate(snapshot, types.JobActionUpdated)
	s.publishStatusUpdate()
	s.archive(snapshot)
	return snapshot, nil
}

// Fail transitions a running job to failed with the given error message
func (s *JobStore) Fail(jobID, message string) (*types.TrackingJob, error) {
	snapshot, err := s.update(jobID, func(job *types.TrackingJob) error {
		if job.Status != types.JobStatusRunning {
			return fmt.Errorf("%w: %s -> failed", ErrInvalidTransition, job.Status)
		}
		now := time.Now().UTC()
		job.Status = types.JobStatusFailed
		job.Error = &types.JobError{Message: message, Timestamp: now}
		job.CompletedAt = &now
		job.Progress.CurrentItemLabel = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishJobUpdate(snapshot, types.JobActionUpdated)
	s.publishStatusUpdate()
	s.archive(snapshot)
	return snapshot, nil
}

// update is the single atomic read-modify-write path. The mutation runs
// on the stored job under the write lock; the caller receives a copy of
// the committed state. Total is captured before the mutation so it can
// never change after creation.
func (s *JobStore) update(jobID string, mutate func(*types.TrackingJob) error) (*types.TrackingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	total := job.Progress.Total
	if err := mutate(job); err != nil {
		return nil, err
	}
	if job.Progress.Total != total {
		job.Progress.Total = total
		return nil, fmt.Errorf("%w: progress total is fixed at creation", ErrInvalidArgument)
	}

	if job.Active() {
		s.active[jobID] = struct{}{}
	} else {
		delete(s.active, jobID)
	}

	return job.Clone(), nil
}

// Stats computes the aggregate view from a consistent snapshot of the
// store. The 24h window counts jobs started within the window plus
// terminal outcomes completed within it.
func (s *JobStore) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{}
	cutoff := time.Now().Add(-24 * time.Hour)

	for _, job := range s.jobs {
		stats.Total++
		switch job.Status {
		case types.JobStatusQueued:
			stats.Queued++
		case types.JobStatusRunning:
			stats.Running++
		case types.JobStatusCompleted:
			stats.Completed++
		case types.JobStatusFailed:
			stats.Failed++
		}

		if job.StartedAt != nil && job.StartedAt.After(cutoff) {
			stats.Last24h.Total++
		}
		if job.CompletedAt != nil && job.CompletedAt.After(cutoff) {
			switch job.Status {
			case types.JobStatusCompleted:
				stats.Last24h.Completed++
			case types.JobStatusFailed:
				stats.Last24h.Failed++
			}
		}
	}

	if stats.Total > 0 {
		stats.ErrorRate = fmt.Sprintf("%.1f%%", float64(stats.Failed)/float64(stats.Total)*100)
	} else {
		stats.ErrorRate = "0.0%"
	}

	return stats
}

func (s *JobStore) publishJobUpdate(job *types.TrackingJob, action types.JobUpdateAction) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(types.Event{
		Type:   types.EventTypeJobUpdate,
		Job:    job,
		Action: action,
	})
}

func (s *JobStore) publishStatusUpdate() {
	if s.bus == nil {
		return
	}
	stats := s.Stats()
	s.bus.Publish(types.Event{
		Type:       types.EventTypeStatusUpdate,
		Stats:      &stats,
		Jobs:       s.ListAll(50),
		ActiveJobs: s.ListActive(),
	})
}

// archive persists a terminal job in the background; failures are
// logged, never surfaced to the scheduler
func (s *JobStore) archive(job *types.TrackingJob) {
	if s.archiver == nil {
		return
	}
	go func() {
		if err := s.archiver.ArchiveJob(job); err != nil {
			if s.logger != nil {
				s.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to archive job")
			}
		}
	}()
}
