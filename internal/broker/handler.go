package broker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

type Handler struct {
	broker *Broker
	logger *zap.Logger
}

func NewHandler(b *Broker, logger *zap.Logger) *Handler {
	return &Handler{
		broker: b,
		logger: logger,
	}
}

// Stream serves the long-lived SSE channel for one origin. Frames are
// `data: {...}\n\n`; a comment heartbeat keeps idle proxies from cutting the
// connection. Any write failure or client disconnect prunes the subscriber.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	originID, err := uuid.Parse(chi.URLParam(r, "originID"))
	if err != nil {
		http.Error(w, "invalid origin id", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := h.broker.Subscribe(originID)
	if err != nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(originID, sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("Stream opened", zap.String("origin_id", originID.String()))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				h.logger.Debug("Stream write failed",
					zap.Error(err),
					zap.String("origin_id", originID.String()),
				)
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Debug("Stream closed by client", zap.String("origin_id", originID.String()))
			return
		}
	}
}
