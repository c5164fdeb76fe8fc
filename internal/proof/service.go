package proof

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veilstats/veil-analytics/internal/codec"
	"github.com/veilstats/veil-analytics/internal/event"
	"go.uber.org/zap"
)

var proofMetrics = []string{event.TypePageview, event.TypeSession, event.TypeConversion}

type Service struct {
	repo   Repository
	events event.Repository
	codec  codec.Codec
	logger *zap.Logger
}

func NewService(repo Repository, events event.Repository, cdc codec.Codec, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		events: events,
		codec:  cdc,
		logger: logger,
	}
}

// Generate aggregates one UTC day of events per metric, persists the totals
// and returns a digest over the aggregate map. The digest is deterministic
// for a given aggregate map: keys are sorted by canonical JSON marshaling.
func (s *Service) Generate(ctx context.Context, originID uuid.UUID, day time.Time) (*Proof, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.AddDate(0, 0, 1)

	window, err := s.events.ByDateRange(ctx, originID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to read day events: %w", err)
	}

	totals := make(map[string]float64, len(proofMetrics))
	now := time.Now().UTC()

	for _, metric := range proofMetrics {
		var blobs [][]byte
		for _, e := range window {
			if e.EventType == metric {
				blobs = append(blobs, e.ValueBlob)
			}
		}

		var total float64
		if len(blobs) > 0 {
			combined, err := s.codec.Aggregate(blobs)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate %s: %w", metric, err)
			}
			total = s.codec.Decode(combined)
		}
		totals[metric] = total

		aggregate := &Aggregate{
			ID:        uuid.New(),
			OriginID:  originID,
			Day:       dayStart,
			Metric:    metric,
			Value:     total,
			CreatedAt: now,
		}
		if err := s.repo.Upsert(ctx, aggregate); err != nil {
			return nil, err
		}
	}

	digest, cid, err := digestOf(totals)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proof generated",
		zap.String("origin_id", originID.String()),
		zap.String("day", dayStart.Format("2006-01-02")),
		zap.String("digest", digest),
	)

	return &Proof{
		Digest:     digest,
		CID:        cid,
		Aggregates: totals,
	}, nil
}

// digestOf hashes the canonical JSON form of the aggregate map. Go's JSON
// encoder sorts map keys, which gives the canonical ordering for free.
func digestOf(totals map[string]float64) (string, string, error) {
	canonical, err := json.Marshal(totals)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal aggregates: %w", err)
	}

	sum := sha256.Sum256(canonical)
	digest := hex.EncodeToString(sum[:])

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	cid := "bafk" + strings.ToLower(encoded)

	return digest, cid, nil
}
