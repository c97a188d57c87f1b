package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/academy-ops/rank-tracking-backend/monitoring"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/academy-ops/rank-tracking-backend/utils"
	"github.com/sirupsen/logrus"
)

// @Summary Stream live state updates
// @Description Server-sent event stream. Sends a connected handshake, then a full initial_state snapshot, then live job, log and stats events as they happen.
// @Tags Tracking Operations
// @Produce text/event-stream
// @Success 200 {string} string "Event stream"
// @Router /stream [get]
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Handshake goes out before subscribing so the client learns the
	// connection is live even when no events ever fire
	if err := writeEvent(w, types.Event{
		Type:      types.EventTypeConnected,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return
	}
	flusher.Flush()

	// Subscribe first, snapshot second: events published between the two
	// arrive on the channel and supersede the snapshot, so nothing is lost
	sub := h.Bus.Subscribe(h.Bus.CurrentSequence())
	defer h.Bus.Unsubscribe(sub.ID)

	monitoring.StreamClientConnected()
	defer monitoring.StreamClientDisconnected()

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"subscriber": sub.ID,
		"clients":    h.Bus.SubscriberCount(),
	}).Info("Stream client connected")

	if err := writeEvent(w, h.initialState()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.WithField("subscriber", sub.ID).Info("Stream client disconnected")
			return

		case evt, open := <-sub.C:
			if !open {
				return
			}
			if err := writeEvent(w, evt); err != nil {
				h.Logger.WithError(err).WithField("subscriber", sub.ID).Warn("Stream write failed, dropping client")
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if err := writeEvent(w, types.Event{
				Type:      types.EventTypeConnected,
				Sequence:  h.Bus.CurrentSequence(),
				Timestamp: time.Now().UTC(),
			}); err != nil {
				h.Logger.WithError(err).WithField("subscriber", sub.ID).Warn("Heartbeat write failed, dropping client")
				return
			}
			flusher.Flush()
		}
	}
}

// initialState builds the full-state snapshot sent to every new stream client
func (h *Handler) initialState() types.Event {
	stats := h.Store.Stats()
	return types.Event{
		Type:       types.EventTypeInitialState,
		Sequence:   h.Bus.CurrentSequence(),
		Timestamp:  time.Now().UTC(),
		Stats:      &stats,
		Jobs:       h.Store.ListAll(50),
		ActiveJobs: h.Store.ListActive(),
		Logs:       h.Logs.Recent(50),
	}
}

// writeEvent encodes one SSE frame: an event line naming the type and a
// data line carrying the JSON payload
func writeEvent(w http.ResponseWriter, evt types.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
	return err
}
