package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Idempotent bootstrap: every statement is CREATE ... IF NOT EXISTS so the
// server can run it unconditionally on startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS origins (
		id UUID PRIMARY KEY,
		domain TEXT NOT NULL,
		owner_address TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_origins_owner ON origins (owner_address)`,
	`CREATE TABLE IF NOT EXISTS encryption_keys (
		id UUID PRIMARY KEY,
		origin_id UUID NOT NULL REFERENCES origins (id) ON DELETE CASCADE,
		public_key TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keys_origin_active ON encryption_keys (origin_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS origin_roles (
		id UUID PRIMARY KEY,
		origin_id UUID NOT NULL REFERENCES origins (id) ON DELETE CASCADE,
		address TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		origin_id UUID NOT NULL REFERENCES origins (id) ON DELETE CASCADE,
		occurred_at TIMESTAMPTZ NOT NULL,
		page TEXT NOT NULL,
		event_type TEXT NOT NULL,
		value_blob BYTEA NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_origin_occurred ON events (origin_id, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS aggregates (
		id UUID PRIMARY KEY,
		origin_id UUID NOT NULL REFERENCES origins (id) ON DELETE CASCADE,
		day DATE NOT NULL,
		metric TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (origin_id, day, metric)
	)`,
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.logger.Error("Failed to apply schema statement", zap.Error(err))
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	db.logger.Info("Database schema ensured", zap.Int("statements", len(schemaStatements)))
	return nil
}
