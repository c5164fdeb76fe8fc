package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veilstats/veil-analytics/internal/broker"
	"github.com/veilstats/veil-analytics/internal/event"
	"go.uber.org/zap"
)

const recomputeTimeout = 10 * time.Second

// Aggregator drives the recompute+publish cycle: one accepted event means one
// fresh snapshot pushed to the origin's live subscribers. Overlapping cycles
// for the same origin are not serialized; a snapshot computed from slightly
// stale data can land after a newer one. Best effort, accepted.
//
// With a coalesce window configured, notifications arriving while a recompute
// is already scheduled fold into it (trailing-edge throttle), trading
// per-event freshness for bounded recompute load.
type Aggregator struct {
	service  *Service
	broker   *broker.Broker
	coalesce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
}

func NewAggregator(service *Service, b *broker.Broker, coalesce time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		service:  service,
		broker:   b,
		coalesce: coalesce,
		logger:   logger,
		pending:  make(map[uuid.UUID]struct{}),
	}
}

// HandleNotification is the Kafka message handler for accepted-event
// notifications.
func (a *Aggregator) HandleNotification(ctx context.Context, key, value []byte) error {
	var n event.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		a.logger.Error("Failed to unmarshal notification",
			zap.Error(err),
			zap.String("value", string(value)),
		)
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	if n.OriginID == uuid.Nil {
		return fmt.Errorf("notification without origin id")
	}

	a.schedule(n.OriginID)
	return nil
}

func (a *Aggregator) schedule(originID uuid.UUID) {
	if a.coalesce <= 0 {
		a.Recompute(originID)
		return
	}

	a.mu.Lock()
	if _, ok := a.pending[originID]; ok {
		a.mu.Unlock()
		return
	}
	a.pending[originID] = struct{}{}
	a.mu.Unlock()

	time.AfterFunc(a.coalesce, func() {
		a.mu.Lock()
		delete(a.pending, originID)
		a.mu.Unlock()

		a.Recompute(originID)
	})
}

// Recompute derives a fresh snapshot and broadcasts it. Failures are logged
// and swallowed: they cost one live update, never the stored event.
func (a *Aggregator) Recompute(originID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()

	snapshot, err := a.service.ComputeSnapshot(ctx, originID)
	if err != nil {
		a.logger.Error("Failed to recompute snapshot",
			zap.Error(err),
			zap.String("origin_id", originID.String()),
		)
		return
	}

	if err := a.broker.Publish(originID, snapshot); err != nil {
		a.logger.Error("Failed to publish snapshot",
			zap.Error(err),
			zap.String("origin_id", originID.String()),
		)
	}
}

// InlineNotifier wires the collect path straight into the aggregator when
// Kafka is disabled. The recompute runs on its own goroutine so the collect
// response never waits on aggregation.
type InlineNotifier struct {
	aggregator *Aggregator
}

func NewInlineNotifier(a *Aggregator) *InlineNotifier {
	return &InlineNotifier{aggregator: a}
}

func (n *InlineNotifier) EventAccepted(ctx context.Context, notification event.Notification) error {
	go n.aggregator.schedule(notification.OriginID)
	return nil
}
