package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/academy-ops/rank-tracking-backend/middleware"
	"github.com/academy-ops/rank-tracking-backend/scheduler"
	"github.com/academy-ops/rank-tracking-backend/store"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/academy-ops/rank-tracking-backend/utils"
	"github.com/sirupsen/logrus"
)

// EnqueueRequest is the body of POST /enqueue
type EnqueueRequest struct {
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name,omitempty"`
	UserEmail string        `json:"user_email,omitempty"`
	Type      types.JobType `json:"type"`
	Items     []string      `json:"items"`
}

// EnqueueResponse carries the id of the created job
type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

// @Summary Enqueue a tracking job
// @Description Creates a rank-tracking job for the given keywords and queues it for execution.
// @Tags Tracking Operations
// @Accept json
// @Produce json
// @Param request body EnqueueRequest true "Job to enqueue"
// @Success 200 {object} EnqueueResponse "Job enqueued"
// @Failure 400 {object} middleware.APIError "Invalid payload"
// @Failure 503 {object} middleware.APIError "Queue full"
// @Router /enqueue [post]
func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid JSON body: %v", err), requestID)
		return
	}

	if len(req.Items) == 0 {
		middleware.RespondValidationError(w, fmt.Errorf("items must not be empty"), requestID)
		return
	}
	if !types.ValidJobType(req.Type) {
		middleware.RespondValidationError(w, fmt.Errorf("unknown job type %q", req.Type), requestID)
		return
	}

	jobID, err := h.Scheduler.Enqueue(req.UserID, req.UserName, req.UserEmail, req.Type, req.Items)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrQueueFull):
			middleware.RespondServiceUnavailable(w, err, requestID)
		case errors.Is(err, store.ErrInvalidArgument):
			middleware.RespondValidationError(w, err, requestID)
		default:
			middleware.RespondInternalError(w, err, requestID)
		}
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"user_id":    req.UserID,
		"type":       req.Type,
		"items":      len(req.Items),
	}).Info("Tracking job accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(EnqueueResponse{JobID: jobID})
}
