package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectServer struct {
	*httptest.Server

	mu       sync.Mutex
	payloads []collectPayload

	failuresBeforeSuccess int32
	requests              int32
}

func newCollectServer(t *testing.T) *collectServer {
	t.Helper()
	cs := &collectServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&cs.requests, 1)

		if n <= atomic.LoadInt32(&cs.failuresBeforeSuccess) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var p collectPayload
		require.NoError(t, json.Unmarshal(body, &p))

		cs.mu.Lock()
		cs.payloads = append(cs.payloads, p)
		cs.mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *collectServer) delivered() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.payloads)
}

func (cs *collectServer) requestCount() int {
	return int(atomic.LoadInt32(&cs.requests))
}

func newTestTracker(t *testing.T, cs *collectServer, overrides func(*Config)) *Tracker {
	t.Helper()
	cfg := Config{
		Endpoint:      cs.URL,
		Token:         "veil_test",
		BatchSize:     5,
		FlushInterval: 150 * time.Millisecond,
		MaxAttempts:   3,
		RetryDelay:    10 * time.Millisecond,
	}
	if overrides != nil {
		overrides(&cfg)
	}

	tracker, err := New(cfg)
	require.NoError(t, err)
	return tracker
}

func TestTracker_FlushesOnBatchSize(t *testing.T) {
	cs := newCollectServer(t)
	tracker := newTestTracker(t, cs, func(c *Config) {
		// Long idle timer so only the size threshold can trigger the flush.
		c.FlushInterval = 10 * time.Second
	})

	for i := 0; i < 5; i++ {
		tracker.Pageview("/")
	}

	require.Eventually(t, func() bool {
		return cs.delivered() == 5
	}, 2*time.Second, 10*time.Millisecond)

	// No timer-triggered second flush follows the size-triggered one.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 5, cs.delivered())

	require.NoError(t, tracker.Close(context.Background()))
}

func TestTracker_FlushesOnInactivity(t *testing.T) {
	cs := newCollectServer(t)
	tracker := newTestTracker(t, cs, nil)

	tracker.Pageview("/")
	tracker.Session("/")

	// Below the size threshold; only the idle timer can fire.
	assert.Equal(t, 0, cs.delivered())

	require.Eventually(t, func() bool {
		return cs.delivered() == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tracker.Close(context.Background()))
}

func TestTracker_TrackRestartsIdleTimer(t *testing.T) {
	cs := newCollectServer(t)
	tracker := newTestTracker(t, cs, func(c *Config) {
		c.FlushInterval = 200 * time.Millisecond
	})

	// Keep tracking faster than the idle interval; nothing should flush.
	for i := 0; i < 3; i++ {
		tracker.Pageview("/")
		time.Sleep(100 * time.Millisecond)
	}
	assert.Equal(t, 0, cs.delivered())

	// Go quiet; the single pending timer fires exactly once.
	require.Eventually(t, func() bool {
		return cs.delivered() == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tracker.Close(context.Background()))
}

func TestTracker_RetriesThenSucceeds(t *testing.T) {
	cs := newCollectServer(t)
	cs.failuresBeforeSuccess = 2

	tracker := newTestTracker(t, cs, nil)
	tracker.Conversion("/checkout", 99, map[string]any{"plan": "pro"})
	tracker.Flush()

	require.Eventually(t, func() bool {
		return cs.delivered() == 1
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, cs.requestCount())

	cs.mu.Lock()
	payload := cs.payloads[0]
	cs.mu.Unlock()
	assert.Equal(t, "conversion", payload.EventType)
	assert.Equal(t, 99.0, payload.Value)
	assert.Equal(t, "veil_test", payload.OriginToken)

	require.NoError(t, tracker.Close(context.Background()))
}

func TestTracker_DropsAfterMaxAttempts(t *testing.T) {
	cs := newCollectServer(t)
	cs.failuresBeforeSuccess = 1000

	tracker := newTestTracker(t, cs, nil)
	tracker.Pageview("/")
	tracker.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, tracker.Close(ctx))

	// Exactly MaxAttempts requests, then the event is gone.
	assert.Equal(t, 3, cs.requestCount())
	assert.Equal(t, 0, cs.delivered())
}

func TestTracker_IndependentDelivery(t *testing.T) {
	cs := newCollectServer(t)
	// First request fails once; other events must not be held up or retried
	// because of it.
	cs.failuresBeforeSuccess = 1

	tracker := newTestTracker(t, cs, nil)
	tracker.Pageview("/a")
	tracker.Pageview("/b")
	tracker.Pageview("/c")
	tracker.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, tracker.Close(ctx))

	assert.Equal(t, 3, cs.delivered())
	assert.Equal(t, 4, cs.requestCount())
}

func TestTracker_CloseFlushesPending(t *testing.T) {
	cs := newCollectServer(t)
	tracker := newTestTracker(t, cs, func(c *Config) {
		c.FlushInterval = 10 * time.Second
	})

	tracker.Pageview("/")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tracker.Close(ctx))

	assert.Equal(t, 1, cs.delivered())

	// Tracking after close is a no-op.
	tracker.Pageview("/late")
	tracker.Flush()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, cs.delivered())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Token: "veil_x"})
	assert.Error(t, err)

	_, err = New(Config{Endpoint: "http://localhost:8080"})
	assert.Error(t, err)
}
