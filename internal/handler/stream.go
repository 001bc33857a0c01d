package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/middleware"
	"github.com/capitalize-ai/growth-advisor/pkg/metrics"
)

const replayBatch = 50

// ReplayCompleteEvent marks the end of the history replay.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	EventCount   int    `json:"event_count"`
}

type errorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type heartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/v1/plans/{id}/events/stream. It replays the
// plan's history after ?after_seq=N as server-sent events, then polls for
// new events until the client disconnects.
func (h *PlanHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	log := middleware.LoggerFrom(ctx)

	id, ok := planID(w, r)
	if !ok {
		return
	}

	var afterSequence uint64
	if s := r.URL.Query().Get("after_seq"); s != "" {
		if seq, err := strconv.ParseUint(s, 10, 64); err == nil {
			afterSequence = seq
		}
	}

	// Ownership and availability are checked before switching to SSE so
	// the client still gets a plain status code.
	first, err := h.service.Events(ctx, userID, id, afterSequence, replayBatch)
	if err != nil {
		h.fail(w, r, err, "failed to load plan events")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server write timeout would otherwise cut the stream off.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn("failed to clear write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	if err := sendSSEEvent(w, flusher, "connected", map[string]string{"plan_id": id}); err != nil {
		return
	}

	lastSequence := afterSequence
	replayed := 0
	resp := first
	for {
		for _, e := range resp.Events {
			if err := sendSSEEvent(w, flusher, "event", e); err != nil {
				return
			}
			lastSequence = e.Sequence
			replayed++
		}
		if !resp.HasMore || ctx.Err() != nil {
			break
		}
		resp, err = h.service.Events(ctx, userID, id, lastSequence, replayBatch)
		if err != nil {
			log.Error("failed to replay plan events", zap.String("plan_id", id), zap.Error(err))
			sendSSEEvent(w, flusher, "error", &errorEvent{Code: "replay_error", Message: "Failed to replay plan events"})
			return
		}
	}

	if err := sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		EventCount:   replayed,
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected", zap.String("plan_id", id))
			return

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &heartbeatEvent{Timestamp: time.Now()}); err != nil {
				log.Debug("SSE write failed", zap.String("plan_id", id), zap.Error(err))
				return
			}

		case <-poll.C:
			resp, err := h.service.Events(ctx, userID, id, lastSequence, replayBatch)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("failed to poll plan events", zap.String("plan_id", id), zap.Error(err))
				continue
			}
			for _, e := range resp.Events {
				if err := sendSSEEvent(w, flusher, "event", e); err != nil {
					log.Debug("SSE write failed", zap.String("plan_id", id), zap.Error(err))
					return
				}
				lastSequence = e.Sequence
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
