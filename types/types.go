// Package types contains shared types used across the rank tracking backend
package types

import (
	"encoding/json"
	"time"
)

// JobType selects which external tracker performs the work
type JobType string

const (
	JobTypeSmartPlace JobType = "smartplace"
	JobTypeBlog       JobType = "blog"
)

// ValidJobType reports whether t is a known job type
func ValidJobType(t JobType) bool {
	return t == JobTypeSmartPlace || t == JobTypeBlog
}

// JobStatus is the lifecycle state of a tracking job.
// Terminal states (completed, failed) are absorbing.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether s admits no further transitions
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Progress tracks per-item completion within a job.
// Total is fixed at creation; Current never exceeds Total.
type Progress struct {
	Current          uint   `json:"current"`
	Total            uint   `json:"total"`
	CurrentItemLabel string `json:"current_item_label,omitempty"`
}

// ItemOutcome records the result of tracking a single keyword.
// Result is the tracker's payload attached verbatim; the backend does
// not interpret it.
type ItemOutcome struct {
	Keyword string          `json:"keyword"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// JobResults is set exactly once, when a job completes
type JobResults struct {
	SuccessCount uint          `json:"success_count"`
	FailedCount  uint          `json:"failed_count"`
	Details      []ItemOutcome `json:"details,omitempty"`
}

// JobError is set exactly once, when a job fails as a whole
type JobError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingJob is one batch rank-tracking run for a user and type
type TrackingJob struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name,omitempty"`
	UserEmail   string      `json:"user_email,omitempty"`
	Type        JobType     `json:"type"`
	Status      JobStatus   `json:"status"`
	Progress    Progress    `json:"progress"`
	Results     *JobResults `json:"results,omitempty"`
	Error       *JobError   `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Active reports whether the job still occupies the active-job view
func (j *TrackingJob) Active() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusRunning
}

// Clone returns a deep copy so callers never share mutable state with the store
func (j *TrackingJob) Clone() *TrackingJob {
	out := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Results != nil {
		r := *j.Results
		r.Details = append([]ItemOutcome(nil), j.Results.Details...)
		out.Results = &r
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	return &out
}

// LogLevel is the severity of a system log entry
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LogCategory groups system log entries by subsystem
type LogCategory string

const (
	LogCategoryTracking LogCategory = "tracking"
	LogCategoryAPI      LogCategory = "api"
	LogCategoryDatabase LogCategory = "database"
	LogCategoryScraper  LogCategory = "scraper"
)

// SystemLogEntry is an operational/audit record independent of any single job
type SystemLogEntry struct {
	ID        string                 `json:"id"`
	Level     LogLevel               `json:"level"`
	Category  LogCategory            `json:"category"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// WindowStats aggregates jobs touched within a time window
type WindowStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Stats is a derived aggregate over the job store; it is recomputed
// from a consistent snapshot, never stored
type Stats struct {
	Total     int         `json:"total"`
	Queued    int         `json:"queued"`
	Running   int         `json:"running"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	ErrorRate string      `json:"error_rate"`
	Last24h   WindowStats `json:"last_24h"`
}

// EventType discriminates the event union on the wire
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeInitialState EventType = "initial_state"
	EventTypeStatusUpdate EventType = "status_update"
	EventTypeJobUpdate    EventType = "job_update"
	EventTypeLogUpdate    EventType = "log_update"
)

// JobUpdateAction qualifies a job_update event
type JobUpdateAction string

const (
	JobActionAdded    JobUpdateAction = "added"
	JobActionUpdated  JobUpdateAction = "updated"
	JobActionProgress JobUpdateAction = "progress"
	JobActionRemoved  JobUpdateAction = "removed"
)

// Event is the closed union of everything pushed over the stream.
// Type selects which payload fields are populated; Sequence increases
// monotonically per server process and is used by clients for replay
// de-duplication.
type Event struct {
	Type      EventType `json:"type"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// job_update
	Job    *TrackingJob    `json:"job,omitempty"`
	Action JobUpdateAction `json:"action,omitempty"`

	// log_update
	Log *SystemLogEntry `json:"log,omitempty"`

	// initial_state and status_update
	Stats      *Stats           `json:"stats,omitempty"`
	Jobs       []*TrackingJob   `json:"jobs,omitempty"`
	ActiveJobs []*TrackingJob   `json:"active_jobs,omitempty"`
	Logs       []SystemLogEntry `json:"logs,omitempty"`
}
