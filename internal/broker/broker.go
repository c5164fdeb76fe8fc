// Package broker fans live aggregate snapshots out to every open dashboard
// stream for an origin. The registry is process-scoped state owned by a single
// Broker value created at server start and injected where needed.
package broker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBufferSize = 16

// Subscriber is one open streaming connection. Frames delivers marshaled
// payloads; the channel is closed when the subscriber is dropped.
type Subscriber struct {
	ch     chan []byte
	closed bool
}

func (s *Subscriber) Frames() <-chan []byte {
	return s.ch
}

type Broker struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[*Subscriber]struct{}
	bufferSize  int
	closed      bool
	logger      *zap.Logger
}

func New(logger *zap.Logger) *Broker {
	return &Broker{
		subscribers: make(map[uuid.UUID]map[*Subscriber]struct{}),
		bufferSize:  defaultBufferSize,
		logger:      logger,
	}
}

// Subscribe registers a connection for an origin. The first frame on the
// channel is a connection-established notice.
func (b *Broker) Subscribe(originID uuid.UUID) (*Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	sub := &Subscriber{ch: make(chan []byte, b.bufferSize)}

	set, ok := b.subscribers[originID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subscribers[originID] = set
	}
	set[sub] = struct{}{}

	notice, _ := json.Marshal(map[string]string{"type": "connected"})
	sub.ch <- notice

	b.logger.Debug("Subscriber registered",
		zap.String("origin_id", originID.String()),
		zap.Int("subscribers", len(set)),
	)

	return sub, nil
}

// Unsubscribe removes a connection, pruning the origin entry when its set
// becomes empty.
func (b *Broker) Unsubscribe(originID uuid.UUID, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drop(originID, sub)
}

// Publish marshals the snapshot once and writes it to every registered
// connection for the origin. Subscribers whose buffers are full are treated
// as dead: they are collected during the pass and dropped after it, so one
// stuck client never blocks or crashes delivery to the rest.
func (b *Broker) Publish(originID uuid.UUID, snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subscribers[originID]
	if !ok {
		return nil
	}

	var stale []*Subscriber
	for sub := range set {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
			stale = append(stale, sub)
		}
	}

	for _, sub := range stale {
		b.drop(originID, sub)
		b.logger.Warn("Dropped slow subscriber",
			zap.String("origin_id", originID.String()),
		)
	}

	b.logger.Debug("Snapshot published",
		zap.String("origin_id", originID.String()),
		zap.Int("subscribers", len(set)-len(stale)),
	)

	return nil
}

func (b *Broker) SubscriberCount(originID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[originID])
}

// Close tears down every open connection; used at server shutdown.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for originID, set := range b.subscribers {
		for sub := range set {
			b.drop(originID, sub)
		}
	}

	b.logger.Info("Broker closed")
}

// drop must be called with b.mu held.
func (b *Broker) drop(originID uuid.UUID, sub *Subscriber) {
	set, ok := b.subscribers[originID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(b.subscribers, originID)
	}

	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
