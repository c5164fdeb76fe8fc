package origin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/veilstats/veil-analytics/pkg/postgres"
	"go.uber.org/zap"
)

type Repository interface {
	// Create persists an origin together with its first active key and the
	// owner role in one transaction.
	Create(ctx context.Context, o *Origin, key *EncryptionKey, role *Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*Origin, error)
	GetByToken(ctx context.Context, token string) (*Origin, error)
	GetByDomain(ctx context.Context, domain string) (*Origin, error)
	GetByOwner(ctx context.Context, ownerAddress string) ([]*Origin, error)
	// Delete removes the origin; keys, roles, events and aggregates go with it
	// through ON DELETE CASCADE.
	Delete(ctx context.Context, id uuid.UUID) error
	GetActiveKey(ctx context.Context, originID uuid.UUID) (*EncryptionKey, error)
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

func (r *repository) Create(ctx context.Context, o *Origin, key *EncryptionKey, role *Role) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO origins (id, domain, owner_address, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.Domain, o.OwnerAddress, o.Token, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert origin: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO encryption_keys (id, origin_id, public_key, fingerprint, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.OriginID, key.PublicKey, key.Fingerprint, key.IsActive, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert encryption key: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO origin_roles (id, origin_id, address, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, role.ID, role.OriginID, role.Address, role.Role, role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("Origin created",
		zap.String("origin_id", o.ID.String()),
		zap.String("domain", o.Domain),
	)

	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Origin, error) {
	var o Origin
	err := r.db.GetContext(ctx, &o, `
		SELECT id, domain, owner_address, token, created_at, updated_at
		FROM origins
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOriginNotFound
		}
		return nil, fmt.Errorf("failed to get origin: %w", err)
	}

	return &o, nil
}

func (r *repository) GetByToken(ctx context.Context, token string) (*Origin, error) {
	var o Origin
	err := r.db.GetContext(ctx, &o, `
		SELECT id, domain, owner_address, token, created_at, updated_at
		FROM origins
		WHERE token = $1
	`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownToken
		}
		return nil, fmt.Errorf("failed to get origin by token: %w", err)
	}

	return &o, nil
}

func (r *repository) GetByDomain(ctx context.Context, domain string) (*Origin, error) {
	var o Origin
	err := r.db.GetContext(ctx, &o, `
		SELECT id, domain, owner_address, token, created_at, updated_at
		FROM origins
		WHERE domain = $1
		ORDER BY created_at
		LIMIT 1
	`, domain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOriginNotFound
		}
		return nil, fmt.Errorf("failed to get origin by domain: %w", err)
	}

	return &o, nil
}

func (r *repository) GetByOwner(ctx context.Context, ownerAddress string) ([]*Origin, error) {
	var origins []*Origin
	err := r.db.SelectContext(ctx, &origins, `
		SELECT id, domain, owner_address, token, created_at, updated_at
		FROM origins
		WHERE owner_address = $1
		ORDER BY created_at DESC
	`, ownerAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get origins by owner: %w", err)
	}

	return origins, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM origins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete origin: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOriginNotFound
	}

	r.logger.Info("Origin deleted", zap.String("origin_id", id.String()))

	return nil
}

func (r *repository) GetActiveKey(ctx context.Context, originID uuid.UUID) (*EncryptionKey, error) {
	var key EncryptionKey
	err := r.db.GetContext(ctx, &key, `
		SELECT id, origin_id, public_key, fingerprint, is_active, created_at
		FROM encryption_keys
		WHERE origin_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, originID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveKey
		}
		return nil, fmt.Errorf("failed to get active key: %w", err)
	}

	return &key, nil
}
