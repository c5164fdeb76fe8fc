package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
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

// Get serves the current dashboard snapshot. Values are derived from the
// bounded recent-event window; an origin with no events gets all zeros.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	originID, err := uuid.Parse(chi.URLParam(r, "originID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid origin id")
		return
	}

	snapshot, err := h.service.ComputeSnapshot(r.Context(), originID)
	if err != nil {
		h.logger.Error("Failed to compute snapshot",
			zap.Error(err),
			zap.String("origin_id", originID.String()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
