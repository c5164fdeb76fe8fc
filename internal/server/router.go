package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/veilstats/veil-analytics/internal/broker"
	"github.com/veilstats/veil-analytics/internal/event"
	"github.com/veilstats/veil-analytics/internal/metrics"
	"github.com/veilstats/veil-analytics/internal/origin"
	"github.com/veilstats/veil-analytics/internal/proof"
	"go.uber.org/zap"
)

type Deps struct {
	Origins *origin.Handler
	Events  *event.Handler
	Metrics *metrics.Handler
	Stream  *broker.Handler
	Proofs  *proof.Handler
	Tracker http.Handler
	// HealthCheck reports readiness of the backing store.
	HealthCheck func(ctx context.Context) error
	Logger      *zap.Logger
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(RequestLogging(deps.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/origins", deps.Origins.Register)
		r.Get("/origins/owner/{address}", deps.Origins.ListByOwner)
		r.Delete("/origins/{id}", deps.Origins.Delete)

		r.Get("/keys/{originID}/current", deps.Origins.CurrentKey)

		r.Post("/collect", deps.Events.Collect)

		r.Get("/metrics/{originID}", deps.Metrics.Get)
		r.Get("/metrics/{originID}/stream", deps.Stream.Stream)

		r.Post("/proofs/{originID}", deps.Proofs.Generate)

		r.Get("/demo/origin", deps.Origins.Demo)
	})

	if deps.Tracker != nil {
		r.Get("/tracker.js", deps.Tracker.ServeHTTP)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	return r
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": message})
}
