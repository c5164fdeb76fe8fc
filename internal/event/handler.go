package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/veilstats/veil-analytics/internal/origin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type collectRequest struct {
	OriginToken string         `json:"originToken"`
	Timestamp   string         `json:"timestamp"`
	Page        string         `json:"page"`
	EventType   string         `json:"eventType"`
	Value       *float64       `json:"value,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Collect accepts one client-submitted event. It answers 202 once the event
// is stored; the recompute+publish cycle it triggers is not awaited.
func (h *Handler) Collect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	occurredAt, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
		return
	}

	// Events carry weight 1 unless the client reports an explicit value
	// (conversion amounts, mostly).
	value := 1.0
	if req.Value != nil {
		value = *req.Value
	}

	e, err := h.service.TrackEvent(r.Context(), Collect{
		Token:      req.OriginToken,
		OccurredAt: occurredAt,
		Page:       req.Page,
		EventType:  req.EventType,
		Value:      value,
		Metadata:   req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, origin.ErrUnknownToken):
			writeError(w, http.StatusUnauthorized, "unknown token")
		case errors.Is(err, ErrInvalidEventType),
			errors.Is(err, ErrInvalidPage),
			errors.Is(err, ErrInvalidTimestamp):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, origin.ErrNoActiveKey):
			writeError(w, http.StatusInternalServerError, "origin key configuration error")
		default:
			writeError(w, http.StatusInternalServerError, "failed to accept event")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted":  true,
		"encrypted": true,
		"realtime":  true,
		"eventId":   e.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
