package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/veilstats/veil-analytics/pkg/postgres"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, e *Event) error
	// RecentWindow returns at most limit events for the origin, newest first.
	// Aggregation reads only this window, never the full history, so derived
	// totals are an approximation once an origin outgrows the limit.
	RecentWindow(ctx context.Context, originID uuid.UUID, limit int) ([]*Event, error)
	ByDateRange(ctx context.Context, originID uuid.UUID, start, end time.Time) ([]*Event, error)
	DeleteByOrigin(ctx context.Context, originID uuid.UUID) (int64, error)
	CountByOrigin(ctx context.Context, originID uuid.UUID) (int64, error)
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

func (r *repository) Create(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO events (id, origin_id, occurred_at, page, event_type, value_blob, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		e.ID,
		e.OriginID,
		e.OccurredAt,
		e.Page,
		e.EventType,
		e.ValueBlob,
		e.Metadata,
		e.CreatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			// 23503 = foreign_key_violation, the origin is gone
			if pqErr.Code == "23503" {
				return ErrOriginNotFound
			}
		}
		r.logger.Error("Failed to create event", zap.Error(err))
		return fmt.Errorf("failed to create event: %w", err)
	}

	r.logger.Debug("Event created",
		zap.String("event_id", e.ID.String()),
		zap.String("event_type", e.EventType),
		zap.String("origin_id", e.OriginID.String()),
	)

	return nil
}

func (r *repository) RecentWindow(ctx context.Context, originID uuid.UUID, limit int) ([]*Event, error) {
	query := `
		SELECT id, origin_id, occurred_at, page, event_type, value_blob, metadata, created_at
		FROM events
		WHERE origin_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	var events []*Event
	err := r.db.SelectContext(ctx, &events, query, originID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}

	return events, nil
}

func (r *repository) ByDateRange(ctx context.Context, originID uuid.UUID, start, end time.Time) ([]*Event, error) {
	query := `
		SELECT id, origin_id, occurred_at, page, event_type, value_blob, metadata, created_at
		FROM events
		WHERE origin_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at
	`

	var events []*Event
	err := r.db.SelectContext(ctx, &events, query, originID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by date range: %w", err)
	}

	return events, nil
}

func (r *repository) DeleteByOrigin(ctx context.Context, originID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE origin_id = $1`, originID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Events deleted",
		zap.String("origin_id", originID.String()),
		zap.Int64("count", rowsAffected),
	)

	return rowsAffected, nil
}

func (r *repository) CountByOrigin(ctx context.Context, originID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM events WHERE origin_id = $1`, originID)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}
