package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/academy-ops/rank-tracking-backend/middleware"
	"github.com/academy-ops/rank-tracking-backend/store"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/academy-ops/rank-tracking-backend/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	defaultSnapshotLimit = 100
	maxSnapshotLimit     = 1000
)

// JobsSnapshot is the stateless full-state view clients poll against
type JobsSnapshot struct {
	Jobs       []*types.TrackingJob `json:"jobs"`
	ActiveJobs []*types.TrackingJob `json:"active_jobs"`
	Stats      types.Stats          `json:"stats"`
}

// LogsSnapshot is the recent-logs view
type LogsSnapshot struct {
	Logs []types.SystemLogEntry `json:"logs"`
}

// @Summary Get a full state snapshot
// @Description Returns the current jobs, active jobs and stats, or the recent system logs. Stateless and safe to poll.
// @Tags Tracking Operations
// @Produce json
// @Param view query string false "Snapshot view: jobs (default) or logs"
// @Param limit query int false "Number of entries to return (default: 100, max: 1000)"
// @Success 200 {object} JobsSnapshot "Snapshot retrieved"
// @Failure 400 {object} middleware.APIError "Bad request"
// @Router /snapshot [get]
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	limit := defaultSnapshotLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid limit parameter: %s", limitStr), requestID)
			return
		}
		if parsed > maxSnapshotLimit {
			parsed = maxSnapshotLimit
		}
		limit = parsed
	}

	view := r.URL.Query().Get("view")
	w.Header().Set("Content-Type", "application/json")

	switch view {
	case "", "jobs":
		json.NewEncoder(w).Encode(JobsSnapshot{
			Jobs:       h.Store.ListAll(limit),
			ActiveJobs: h.Store.ListActive(),
			Stats:      h.Store.Stats(),
		})
	case "logs":
		json.NewEncoder(w).Encode(LogsSnapshot{Logs: h.Logs.Recent(limit)})
	default:
		middleware.RespondBadRequest(w, fmt.Errorf("unknown view %q", view), requestID)
	}
}

// @Summary Get one tracking job
// @Description Returns the full current state of a single job.
// @Tags Tracking Operations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} types.TrackingJob "Job retrieved"
// @Failure 404 {object} middleware.APIError "Job not found"
// @Router /jobs/{id} [get]
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	job, err := h.Store.Get(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.RespondNotFound(w, err, requestID)
			return
		}
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"status":     job.Status,
	}).Debug("Job retrieved")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}
