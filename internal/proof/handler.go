package proof

import (
	"encoding/json"
	"net/http"
	"time"

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

type generateRequest struct {
	Day string `json:"day"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	originID, err := uuid.Parse(chi.URLParam(r, "originID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid origin id")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	day, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	p, err := h.service.Generate(r.Context(), originID, day)
	if err != nil {
		h.logger.Error("Failed to generate proof",
			zap.Error(err),
			zap.String("origin_id", originID.String()),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate proof")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
