// Package client is the Go SDK for submitting tracked events. It mirrors the
// browser agent's delivery model: events are buffered and flushed by size
// threshold or inactivity, each drained event is delivered independently with
// bounded retries, and events that exhaust their retries are dropped. This is
// best-effort telemetry, not exactly-once delivery.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBatchSize     = 5
	defaultFlushInterval = 3 * time.Second
	defaultMaxAttempts   = 3
	defaultRetryDelay    = time.Second
)

type Config struct {
	// Endpoint is the server base URL, e.g. "https://stats.example.com".
	Endpoint string
	// Token is the origin's collect credential.
	Token string

	BatchSize     int
	FlushInterval time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Event struct {
	Timestamp time.Time
	Page      string
	EventType string
	Value     float64
	Metadata  map[string]any
}

type Tracker struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	queue  []Event
	timer  *time.Timer
	closed bool

	wg sync.WaitGroup
}

func New(cfg Config) (*Tracker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tracker{
		cfg:    cfg,
		client: client,
		logger: logger,
	}, nil
}

// Track queues one event. The queue flushes as soon as it reaches the batch
// size; otherwise the pending inactivity timer is restarted, so a quiet
// period of FlushInterval triggers exactly one flush.
func (t *Tracker) Track(eventType, page string, value float64, metadata map[string]any) {
	e := Event{
		Timestamp: time.Now().UTC(),
		Page:      page,
		EventType: eventType,
		Value:     value,
		Metadata:  metadata,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.queue = append(t.queue, e)

	if len(t.queue) >= t.cfg.BatchSize {
		t.flushLocked()
		return
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.cfg.FlushInterval, t.Flush)
}

func (t *Tracker) Pageview(page string) {
	t.Track("pageview", page, 1, nil)
}

func (t *Tracker) Session(page string) {
	t.Track("session", page, 1, nil)
}

func (t *Tracker) Conversion(page string, value float64, metadata map[string]any) {
	t.Track("conversion", page, value, metadata)
}

// Flush drains the queue and dispatches every drained event for independent
// delivery. One event's failure never blocks or retries the others.
func (t *Tracker) Flush() {
	t.mu.Lock()
	t.flushLocked()
	t.mu.Unlock()
}

// flushLocked must be called with t.mu held.
func (t *Tracker) flushLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	if len(t.queue) == 0 {
		return
	}

	drained := t.queue
	t.queue = nil

	for _, e := range drained {
		t.wg.Add(1)
		go func(e Event) {
			defer t.wg.Done()
			t.deliver(e)
		}(e)
	}
}

// Close performs a final forced flush and waits for in-flight deliveries,
// the SDK analog of the browser agent's pagehide flush.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.flushLocked()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver retries with linearly increasing delay (attempt x RetryDelay) and
// drops the event once attempts are exhausted.
func (t *Tracker) deliver(e Event) {
	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		err := t.send(e)
		if err == nil {
			return
		}

		t.logger.Warn("Delivery attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("event_type", e.EventType),
		)

		if attempt < t.cfg.MaxAttempts {
			time.Sleep(time.Duration(attempt) * t.cfg.RetryDelay)
		}
	}

	t.logger.Warn("Event dropped after retries",
		zap.String("event_type", e.EventType),
		zap.String("page", e.Page),
	)
}

type collectPayload struct {
	OriginToken string         `json:"originToken"`
	Timestamp   string         `json:"timestamp"`
	Page        string         `json:"page"`
	EventType   string         `json:"eventType"`
	Value       float64        `json:"value"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (t *Tracker) send(e Event) error {
	body, err := json.Marshal(collectPayload{
		OriginToken: t.cfg.Token,
		Timestamp:   e.Timestamp.Format(time.RFC3339),
		Page:        e.Page,
		EventType:   e.EventType,
		Value:       e.Value,
		Metadata:    e.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, t.cfg.Endpoint+"/api/collect", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}
