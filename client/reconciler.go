/*
Package client provides a reconciling consumer for the rank tracking
backend's event stream.

The Reconciler maintains a local mirror of the server state (jobs,
recent logs, stats) and keeps it converged through two transports: the
server-sent event stream while it is healthy, and periodic snapshot
polling while it is not. Events are merged idempotently using their
sequence numbers, so replays and out-of-order delivery never corrupt
the mirror.
*/
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
)

// State is the reconciler's connection state
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
	StatePolling      State = "polling"
)

const (
	defaultPollActiveInterval = 5 * time.Second
	defaultPollIdleInterval   = 15 * time.Second
	defaultReconnectInterval  = 5 * time.Second
	maxMirroredLogs           = 100
)

// Config holds reconciler tuning knobs; zero values fall back to defaults
type Config struct {
	// PollActiveInterval is the snapshot poll period while any mirrored
	// job is still queued or running
	PollActiveInterval time.Duration
	// PollIdleInterval is the snapshot poll period when everything is settled
	PollIdleInterval time.Duration
	// ReconnectInterval paces stream reconnection attempts while polling
	ReconnectInterval time.Duration
}

// Reconciler mirrors the backend state over stream or polling
type Reconciler struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
	cfg     Config

	mu     sync.RWMutex
	state  State
	jobs   map[string]*types.TrackingJob
	jobSeq map[string]uint64
	logSeq uint64
	logs   []types.SystemLogEntry
	stats  types.Stats
}

// New creates a reconciler for the backend at baseURL
func New(baseURL string, httpClient *http.Client, cfg Config, logger *logrus.Logger) *Reconciler {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.PollActiveInterval <= 0 {
		cfg.PollActiveInterval = defaultPollActiveInterval
	}
	if cfg.PollIdleInterval <= 0 {
		cfg.PollIdleInterval = defaultPollIdleInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	return &Reconciler{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
		cfg:     cfg,
		state:   StateDisconnected,
		jobs:    make(map[string]*types.TrackingJob),
		jobSeq:  make(map[string]uint64),
	}
}

// Run drives the reconciler until ctx is cancelled. It prefers the
// event stream and degrades to snapshot polling whenever the stream is
// unavailable, retrying the stream in the background.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			r.setState(StateDisconnected)
			return
		}

		r.setState(StateConnecting)
		err := r.streamSession(ctx)
		if ctx.Err() != nil {
			r.setState(StateDisconnected)
			return
		}

		r.logger.WithError(err).Warn("Stream session ended, falling back to polling")
		r.setState(StatePolling)

		// Refresh immediately so the gap between the stream break and
		// the first poll tick does not show stale state
		if err := r.fetchSnapshot(ctx); err != nil {
			r.logger.WithError(err).Warn("Snapshot fetch failed")
		}

		if !r.pollUntilReconnect(ctx) {
			r.setState(StateDisconnected)
			return
		}
	}
}

// pollUntilReconnect runs the degraded loop: snapshot polls at an
// adaptive interval plus a reconnect timer. Returns false when ctx is
// cancelled, true when it is time to retry the stream.
func (r *Reconciler) pollUntilReconnect(ctx context.Context) bool {
	poll := time.NewTimer(r.pollInterval())
	defer poll.Stop()
	reconnect := time.NewTimer(r.cfg.ReconnectInterval)
	defer reconnect.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-reconnect.C:
			return true
		case <-poll.C:
			if err := r.fetchSnapshot(ctx); err != nil {
				r.logger.WithError(err).Warn("Snapshot fetch failed")
			}
			poll.Reset(r.pollInterval())
		}
	}
}

// pollInterval is short while jobs are in flight, long when idle
func (r *Reconciler) pollInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if job.Active() {
			return r.cfg.PollActiveInterval
		}
	}
	return r.cfg.PollIdleInterval
}

// streamSession opens the event stream and applies events until the
// connection breaks or ctx is cancelled
func (r *Reconciler) streamSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/stream", nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var evt types.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			r.logger.WithError(err).Warn("Malformed stream payload, skipping")
			continue
		}

		switch evt.Type {
		case types.EventTypeConnected:
			r.setState(StateStreaming)
		case types.EventTypeInitialState:
			r.adoptSnapshot(evt.Jobs, evt.Logs, evt.Stats, evt.Sequence)
		default:
			r.ApplyEvent(evt)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}

// fetchSnapshot pulls the full state and adopts it wholesale
func (r *Reconciler) fetchSnapshot(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/snapshot?view=jobs", nil)
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snapshot returned %d", resp.StatusCode)
	}

	var snapshot struct {
		Jobs       []*types.TrackingJob `json:"jobs"`
		ActiveJobs []*types.TrackingJob `json:"active_jobs"`
		Stats      types.Stats          `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	r.adoptSnapshot(snapshot.Jobs, nil, &snapshot.Stats, 0)
	return nil
}

// adoptSnapshot replaces the mirror wholesale. The snapshot is
// authoritative, so per-job sequence tracking restarts at baseSeq.
func (r *Reconciler) adoptSnapshot(jobs []*types.TrackingJob, logs []types.SystemLogEntry, stats *types.Stats, baseSeq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = make(map[string]*types.TrackingJob, len(jobs))
	r.jobSeq = make(map[string]uint64, len(jobs))
	for _, job := range jobs {
		r.jobs[job.ID] = job.Clone()
		r.jobSeq[job.ID] = baseSeq
	}
	if logs != nil {
		r.logs = append([]types.SystemLogEntry(nil), logs...)
		if len(r.logs) > maxMirroredLogs {
			r.logs = r.logs[:maxMirroredLogs]
		}
		if baseSeq > r.logSeq {
			r.logSeq = baseSeq
		}
	}
	if stats != nil {
		r.stats = *stats
	}
}

// ApplyEvent merges one event into the mirror. The merge is idempotent
// and order-tolerant: per-job updates apply last-writer-wins on the
// event sequence, replayed log events are dropped by sequence, and
// unknown event types are skipped.
func (r *Reconciler) ApplyEvent(evt types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch evt.Type {
	case types.EventTypeJobUpdate:
		if evt.Job == nil {
			return
		}
		if evt.Sequence < r.jobSeq[evt.Job.ID] {
			return
		}
		r.jobSeq[evt.Job.ID] = evt.Sequence
		if evt.Action == types.JobActionRemoved {
			delete(r.jobs, evt.Job.ID)
			return
		}
		r.jobs[evt.Job.ID] = evt.Job.Clone()

	case types.EventTypeLogUpdate:
		if evt.Log == nil || evt.Sequence <= r.logSeq {
			return
		}
		r.logSeq = evt.Sequence
		r.logs = append([]types.SystemLogEntry{*evt.Log}, r.logs...)
		if len(r.logs) > maxMirroredLogs {
			r.logs = r.logs[:maxMirroredLogs]
		}

	case types.EventTypeStatusUpdate:
		if evt.Stats != nil {
			r.stats = *evt.Stats
		}
		for _, job := range evt.Jobs {
			if evt.Sequence < r.jobSeq[job.ID] {
				continue
			}
			r.jobSeq[job.ID] = evt.Sequence
			r.jobs[job.ID] = job.Clone()
		}

	case types.EventTypeConnected, types.EventTypeInitialState:
		// Handled by the session loop

	default:
		if r.logger != nil {
			r.logger.WithField("event_type", evt.Type).Warn("Unknown event type, skipping")
		}
	}
}

// State returns the current connection state
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()

	if prev != s && r.logger != nil {
		r.logger.WithFields(logrus.Fields{"from": prev, "to": s}).Info("Reconciler state changed")
	}
}

// Jobs returns the mirrored jobs, newest first by creation time
func (r *Reconciler) Jobs() []*types.TrackingJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.TrackingJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Job returns one mirrored job by id
func (r *Reconciler) Job(id string) (*types.TrackingJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Logs returns the mirrored recent logs, newest first
func (r *Reconciler) Logs() []types.SystemLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.SystemLogEntry(nil), r.logs...)
}

// Stats returns the last seen aggregate stats
func (r *Reconciler) Stats() types.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
