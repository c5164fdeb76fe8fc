package origin

import (
	"encoding/json"
	"errors"
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

type registerRequest struct {
	Domain       string `json:"domain"`
	OwnerAddress string `json:"ownerAddress"`
}

type registerResponse struct {
	Origin               *Origin `json:"origin"`
	Token                string  `json:"token"`
	PublicKeyFingerprint string  `json:"publicKeyFingerprint"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, key, err := h.service.Register(r.Context(), req.Domain, req.OwnerAddress)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDomain), errors.Is(err, ErrInvalidOwner):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register origin")
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Origin:               o,
		Token:                o.Token,
		PublicKeyFingerprint: key.Fingerprint,
	})
}

func (h *Handler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	origins, err := h.service.GetByOwner(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list origins")
		return
	}

	if origins == nil {
		origins = []*Origin{}
	}
	writeJSON(w, http.StatusOK, origins)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid origin id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrOriginNotFound) {
			writeError(w, http.StatusNotFound, "origin not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete origin")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "origin and all associated data deleted",
	})
}

func (h *Handler) CurrentKey(w http.ResponseWriter, r *http.Request) {
	originID, err := uuid.Parse(chi.URLParam(r, "originID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid origin id")
		return
	}

	key, err := h.service.ActiveKey(r.Context(), originID)
	if err != nil {
		if errors.Is(err, ErrNoActiveKey) {
			writeError(w, http.StatusNotFound, "no active key for origin")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"publicKey":   key.PublicKey,
		"fingerprint": key.Fingerprint,
		"id":          key.ID,
	})
}

func (h *Handler) Demo(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.DemoOrigin(r.Context())
	if err != nil {
		h.logger.Error("Failed to get demo origin", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get demo origin")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"origin": o,
		"token":  o.Token,
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
