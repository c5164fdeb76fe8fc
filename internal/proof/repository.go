package proof

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veilstats/veil-analytics/pkg/postgres"
	"go.uber.org/zap"
)

type Repository interface {
	// Upsert replaces the aggregate for (origin, day, metric); regenerating a
	// proof for the same day overwrites rather than duplicates.
	Upsert(ctx context.Context, a *Aggregate) error
	GetByDay(ctx context.Context, originID uuid.UUID, day time.Time) ([]*Aggregate, error)
}

type repository struct {
	db     *postgres.DB
	logger *zap.Logger
}

func NewRepository(db *postgres.DB, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

func (r *repository) Upsert(ctx context.Context, a *Aggregate) error {
	query := `
		INSERT INTO aggregates (id, origin_id, day, metric, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (origin_id, day, metric)
		DO UPDATE SET value = EXCLUDED.value, created_at = EXCLUDED.created_at
	`

	_, err := r.db.ExecContext(ctx, query, a.ID, a.OriginID, a.Day, a.Metric, a.Value, a.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert aggregate", zap.Error(err))
		return fmt.Errorf("failed to upsert aggregate: %w", err)
	}

	return nil
}

func (r *repository) GetByDay(ctx context.Context, originID uuid.UUID, day time.Time) ([]*Aggregate, error) {
	query := `
		SELECT id, origin_id, day, metric, value, created_at
		FROM aggregates
		WHERE origin_id = $1 AND day = $2
		ORDER BY metric
	`

	var aggregates []*Aggregate
	err := r.db.SelectContext(ctx, &aggregates, query, originID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregates: %w", err)
	}

	return aggregates, nil
}
