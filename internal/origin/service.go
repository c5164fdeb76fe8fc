package origin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo       Repository
	demoDomain string
	logger     *zap.Logger
}

func NewService(repo Repository, demoDomain string, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		demoDomain: demoDomain,
		logger:     logger,
	}
}

// Register creates an origin together with its active encryption key and the
// owner role. The three rows land atomically; an origin without a key or an
// owner never exists.
func (s *Service) Register(ctx context.Context, domain, ownerAddress string) (*Origin, *EncryptionKey, error) {
	o, err := NewOrigin(domain, ownerAddress)
	if err != nil {
		return nil, nil, err
	}

	key, err := NewEncryptionKey(o.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create key: %w", err)
	}

	role := NewOwnerRole(o.ID, o.OwnerAddress)

	if err := s.repo.Create(ctx, o, key, role); err != nil {
		s.logger.Error("Failed to register origin",
			zap.Error(err),
			zap.String("domain", o.Domain),
		)
		return nil, nil, fmt.Errorf("failed to register origin: %w", err)
	}

	s.logger.Info("Origin registered",
		zap.String("origin_id", o.ID.String()),
		zap.String("domain", o.Domain),
		zap.String("key_fingerprint", key.Fingerprint),
	)

	return o, key, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Origin, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByOwner(ctx context.Context, ownerAddress string) ([]*Origin, error) {
	origins, err := s.repo.GetByOwner(ctx, ownerAddress)
	if err != nil {
		s.logger.Error("Failed to list origins", zap.Error(err), zap.String("owner", ownerAddress))
		return nil, err
	}
	return origins, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrOriginNotFound) {
			s.logger.Error("Failed to delete origin", zap.Error(err), zap.String("origin_id", id.String()))
		}
		return err
	}
	return nil
}

// Authenticate resolves a collect token to its origin. Callers get a single
// opaque error for any mismatch.
func (s *Service) Authenticate(ctx context.Context, token string) (*Origin, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	return s.repo.GetByToken(ctx, token)
}

func (s *Service) ActiveKey(ctx context.Context, originID uuid.UUID) (*EncryptionKey, error) {
	return s.repo.GetActiveKey(ctx, originID)
}

// DemoOrigin returns the shared demo origin, creating it on first use.
// Repeated calls return the same origin and token.
func (s *Service) DemoOrigin(ctx context.Context) (*Origin, error) {
	o, err := s.repo.GetByDomain(ctx, s.demoDomain)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, ErrOriginNotFound) {
		return nil, err
	}

	o, _, err = s.Register(ctx, s.demoDomain, "demo")
	if err != nil {
		return nil, err
	}
	return o, nil
}
