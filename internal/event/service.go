package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veilstats/veil-analytics/internal/codec"
	"github.com/veilstats/veil-analytics/internal/origin"
	"go.uber.org/zap"
)

// Authenticator resolves collect credentials; implemented by origin.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*origin.Origin, error)
	ActiveKey(ctx context.Context, originID uuid.UUID) (*origin.EncryptionKey, error)
}

// Notifier kicks off the asynchronous recompute+publish cycle after an event
// is durably stored. Notification failures only affect live updates, never
// the stored event, so the service logs and swallows them.
type Notifier interface {
	EventAccepted(ctx context.Context, n Notification) error
}

type Collect struct {
	Token      string
	OccurredAt time.Time
	Page       string
	EventType  string
	Value      float64
	Metadata   map[string]any
}

type Service struct {
	repo     Repository
	origins  Authenticator
	codec    codec.Codec
	notifier Notifier
	logger   *zap.Logger
}

func NewService(
	repo Repository,
	origins Authenticator,
	cdc codec.Codec,
	notifier Notifier,
	logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		origins:  origins,
		codec:    cdc,
		notifier: notifier,
		logger:   logger,
	}
}

// TrackEvent authenticates, encodes and persists one collected event, then
// notifies the aggregator. The caller gets an acknowledgment as soon as the
// row is durable; recompute and fan-out happen behind it.
func (s *Service) TrackEvent(ctx context.Context, c Collect) (*Event, error) {
	o, err := s.origins.Authenticate(ctx, c.Token)
	if err != nil {
		return nil, err
	}

	// Collect must fail loudly if the origin lost its key: every origin is
	// created with exactly one active key and nothing rotates it away.
	if _, err := s.origins.ActiveKey(ctx, o.ID); err != nil {
		s.logger.Error("Origin has no active key",
			zap.Error(err),
			zap.String("origin_id", o.ID.String()),
		)
		return nil, err
	}

	blob, err := s.codec.Encode(c.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}

	e, err := NewEvent(o.ID, c.OccurredAt, c.Page, c.EventType, blob, c.Metadata)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error("Failed to store event",
			zap.Error(err),
			zap.String("event_id", e.ID.String()),
		)
		return nil, fmt.Errorf("failed to store event: %w", err)
	}

	notification := Notification{
		OriginID:   e.OriginID,
		EventType:  e.EventType,
		OccurredAt: e.OccurredAt,
	}
	if err := s.notifier.EventAccepted(ctx, notification); err != nil {
		s.logger.Error("Failed to notify aggregator",
			zap.Error(err),
			zap.String("origin_id", e.OriginID.String()),
		)
	}

	s.logger.Info("Event tracked",
		zap.String("event_id", e.ID.String()),
		zap.String("event_type", e.EventType),
		zap.String("origin_id", e.OriginID.String()),
	)

	return e, nil
}
