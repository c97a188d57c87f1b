/*
Package handlers provides HTTP handlers with dependency injection support.

This package defines the Handler struct that contains all service dependencies,
eliminating global variables and enabling better testability and separation of concerns.
*/
package handlers

import (
	"time"

	"github.com/academy-ops/rank-tracking-backend/eventbus"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
)

// JobStoreInterface defines the read side of the job store
type JobStoreInterface interface {
	Get(jobID string) (*types.TrackingJob, error)
	ListAll(limit int) []*types.TrackingJob
	ListActive() []*types.TrackingJob
	Stats() types.Stats
}

// SchedulerInterface defines the operations handlers need from the scheduler
type SchedulerInterface interface {
	Enqueue(userID, userName, userEmail string, jobType types.JobType, keywords []string) (string, error)
	Running() bool
}

// LogRingInterface defines the read side of the recent-logs ring
type LogRingInterface interface {
	Recent(limit int) []types.SystemLogEntry
}

// EventBusInterface defines the subscription side of the event bus
type EventBusInterface interface {
	Subscribe(afterSequence uint64) *eventbus.Subscription
	Unsubscribe(id string)
	CurrentSequence() uint64
	SubscriberCount() int
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Store     JobStoreInterface
	Scheduler SchedulerInterface
	Logs      LogRingInterface
	Bus       EventBusInterface
	Logger    *logrus.Logger

	// HeartbeatInterval paces keepalive events on open streams
	HeartbeatInterval time.Duration
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(store JobStoreInterface, sched SchedulerInterface, logs LogRingInterface, bus EventBusInterface, heartbeat time.Duration, logger *logrus.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Handler{
		Store:             store,
		Scheduler:         sched,
		Logs:              logs,
		Bus:               bus,
		Logger:            logger,
		HeartbeatInterval: heartbeat,
	}
}
