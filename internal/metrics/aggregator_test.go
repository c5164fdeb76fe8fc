package metrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilstats/veil-analytics/internal/broker"
	"github.com/veilstats/veil-analytics/internal/event"
	"go.uber.org/zap"
)

func notification(t *testing.T, originID uuid.UUID) []byte {
	t.Helper()
	payload, err := json.Marshal(event.Notification{
		OriginID:   originID,
		EventType:  event.TypePageview,
		OccurredAt: testNow,
	})
	require.NoError(t, err)
	return payload
}

// Drains frames until one parses as a snapshot, skipping the connection
// notice.
func nextSnapshot(t *testing.T, sub *broker.Subscriber) *Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-sub.Frames():
			require.True(t, ok, "subscriber channel closed")
			var s Snapshot
			if err := json.Unmarshal(frame, &s); err == nil && s.Metrics != nil {
				return &s
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot frame")
		}
	}
}

func TestAggregator_RecomputePublishes(t *testing.T) {
	repo := &fakeEventRepo{}
	originID := uuid.New()
	addEvent(t, repo, originID, event.TypePageview, "/", 1, testNow)

	b := broker.New(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(originID)
	require.NoError(t, err)

	agg := NewAggregator(newTestService(t, repo), b, 0, zap.NewNop())
	require.NoError(t, agg.HandleNotification(context.Background(), nil, notification(t, originID)))

	snapshot := nextSnapshot(t, sub)
	assert.Equal(t, int64(1), snapshot.Metrics.Pageviews)
}

func TestAggregator_MalformedNotification(t *testing.T) {
	b := broker.New(zap.NewNop())
	defer b.Close()

	agg := NewAggregator(newTestService(t, &fakeEventRepo{}), b, 0, zap.NewNop())

	assert.Error(t, agg.HandleNotification(context.Background(), nil, []byte("not json")))
	assert.Error(t, agg.HandleNotification(context.Background(), nil, []byte(`{}`)))
}

func TestAggregator_CoalescesBursts(t *testing.T) {
	repo := &fakeEventRepo{}
	originID := uuid.New()
	addEvent(t, repo, originID, event.TypePageview, "/", 1, testNow)

	b := broker.New(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(originID)
	require.NoError(t, err)
	<-sub.Frames() // connection notice

	agg := NewAggregator(newTestService(t, repo), b, 50*time.Millisecond, zap.NewNop())

	// A burst within the coalesce window folds into one recompute.
	for i := 0; i < 5; i++ {
		require.NoError(t, agg.HandleNotification(context.Background(), nil, notification(t, originID)))
	}

	select {
	case <-sub.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for coalesced snapshot")
	}

	select {
	case frame := <-sub.Frames():
		t.Fatalf("expected a single coalesced publish, got extra frame %s", frame)
	case <-time.After(200 * time.Millisecond):
	}
}
