package store

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/academy-ops/rank-tracking-backend/monitoring"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
)

// Archiver persists records that have left the core's read path:
// terminal jobs kept for long-term history and log entries evicted from
// the ring. Implementations must be safe for concurrent use.
type Archiver interface {
	ArchiveJob(job *types.TrackingJob) error
	ArchiveLogEntry(entry types.SystemLogEntry) error
}

const archiveTimeout = 10 * time.Second

// DatastoreArchiver writes archived records to Google Cloud Datastore
type DatastoreArchiver struct {
	client *datastore.Client
	logger *logrus.Logger
}

// NewDatastoreArchiver creates an archiver backed by the given client
func NewDatastoreArchiver(client *datastore.Client, logger *logrus.Logger) *DatastoreArchiver {
	return &DatastoreArchiver{client: client, logger: logger}
}

// archivedJob is the datastore representation of a terminal job. Only
// summary fields are persisted; per-item details stay in memory.
type archivedJob struct {
	ID           string    `datastore:"id"`
	UserID       string    `datastore:"user_id"`
	Type         string    `datastore:"type"`
	Status       string    `datastore:"status"`
	Total        int       `datastore:"total"`
	SuccessCount int       `datastore:"success_count"`
	FailedCount  int       `datastore:"failed_count"`
	ErrorMessage string    `datastore:"error_message,noindex"`
	CreatedAt    time.Time `datastore:"created_at"`
	CompletedAt  time.Time `datastore:"completed_at"`
}

type archivedLogEntry struct {
	ID        string    `datastore:"id"`
	Level     string    `datastore:"level"`
	Category  string    `datastore:"category"`
	Message   string    `datastore:"message,noindex"`
	UserID    string    `datastore:"user_id"`
	Timestamp time.Time `datastore:"timestamp"`
}

// ArchiveJob persists a terminal job keyed by its id to prevent duplicates
func (a *DatastoreArchiver) ArchiveJob(job *types.TrackingJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	rec := archivedJob{
		ID:        job.ID,
		UserID:    job.UserID,
		Type:      string(job.Type),
		Status:    string(job.Status),
		Total:     int(job.Progress.Total),
		CreatedAt: job.CreatedAt,
	}
	if job.Results != nil {
		rec.SuccessCount = int(job.Results.SuccessCount)
		rec.FailedCount = int(job.Results.FailedCount)
	}
	if job.Error != nil {
		rec.ErrorMessage = job.Error.Message
	}
	if job.CompletedAt != nil {
		rec.CompletedAt = *job.CompletedAt
	}

	key := datastore.NameKey("TrackingJob", job.ID, nil)
	if _, err := a.client.Put(ctx, key, &rec); err != nil {
		monitoring.RecordArchiveOperation("job", "failed")
		return err
	}

	monitoring.RecordArchiveOperation("job", "success")
	return nil
}

// ArchiveLogEntry persists a log entry evicted from the ring
func (a *DatastoreArchiver) ArchiveLogEntry(entry types.SystemLogEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	rec := archivedLogEntry{
		ID:        entry.ID,
		Level:     string(entry.Level),
		Category:  string(entry.Category),
		Message:   entry.Message,
		UserID:    entry.UserID,
		Timestamp: entry.Timestamp,
	}

	key := datastore.NameKey("SystemLogEntry", entry.ID, nil)
	if _, err := a.client.Put(ctx, key, &rec); err != nil {
		monitoring.RecordArchiveOperation("log_entry", "failed")
		return err
	}

	monitoring.RecordArchiveOperation("log_entry", "success")
	return nil
}
