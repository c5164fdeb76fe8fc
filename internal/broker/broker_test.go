package broker

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubscribe_SendsConnectionNotice(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(uuid.New())
	require.NoError(t, err)

	frame := <-sub.Frames()
	var notice map[string]string
	require.NoError(t, json.Unmarshal(frame, &notice))
	assert.Equal(t, "connected", notice["type"])
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	originID := uuid.New()
	first, err := b.Subscribe(originID)
	require.NoError(t, err)
	second, err := b.Subscribe(originID)
	require.NoError(t, err)

	<-first.Frames()
	<-second.Frames()

	require.NoError(t, b.Publish(originID, map[string]int{"pageviews": 7}))

	for _, sub := range []*Subscriber{first, second} {
		frame := <-sub.Frames()
		assert.JSONEq(t, `{"pageviews":7}`, string(frame))
	}
}

func TestPublish_OtherOriginUnaffected(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	originID := uuid.New()
	other, err := b.Subscribe(uuid.New())
	require.NoError(t, err)
	<-other.Frames()

	require.NoError(t, b.Publish(originID, map[string]int{"pageviews": 1}))

	select {
	case frame := <-other.Frames():
		t.Fatalf("unexpected frame for other origin: %s", frame)
	default:
	}
}

func TestPublish_DropsStuckSubscriber(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	originID := uuid.New()
	stuck, err := b.Subscribe(originID)
	require.NoError(t, err)
	healthy, err := b.Subscribe(originID)
	require.NoError(t, err)
	<-healthy.Frames()

	// Leave the stuck subscriber's connection notice in place and fill the
	// rest of its buffer; the publish that finds it full drops it.
	for i := 0; i < defaultBufferSize; i++ {
		_ = b.Publish(originID, map[string]int{"seq": i})
	}

	assert.Equal(t, 1, b.SubscriberCount(originID))

	// The healthy subscriber saw every publish and keeps receiving.
	for i := 0; i < defaultBufferSize; i++ {
		<-healthy.Frames()
	}

	require.NoError(t, b.Publish(originID, map[string]string{"status": "alive"}))
	assert.Equal(t, `{"status":"alive"}`, string(<-healthy.Frames()))

	// The dropped subscriber's channel is closed once drained.
	for range stuck.Frames() {
	}
}

func TestUnsubscribe_PrunesOriginEntry(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	originID := uuid.New()
	sub, err := b.Subscribe(originID)
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount(originID))

	b.Unsubscribe(originID, sub)
	assert.Equal(t, 0, b.SubscriberCount(originID))

	// Publishing to an origin with no subscribers is a no-op.
	assert.NoError(t, b.Publish(originID, map[string]int{"pageviews": 1}))
}

func TestClose_TearsDownSubscribers(t *testing.T) {
	b := New(zap.NewNop())

	originID := uuid.New()
	sub, err := b.Subscribe(originID)
	require.NoError(t, err)

	b.Close()

	for range sub.Frames() {
	}

	_, err = b.Subscribe(originID)
	assert.Error(t, err)
}
