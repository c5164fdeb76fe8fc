package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypePageview   = "pageview"
	TypeSession    = "session"
	TypeConversion = "conversion"
	TypeCustom     = "event"
)

// Event is one tracked user action. Rows are immutable once written; the
// store is an append-only log per origin.
type Event struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	OriginID   uuid.UUID       `db:"origin_id" json:"origin_id"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
	Page       string          `db:"page" json:"page"`
	EventType  string          `db:"event_type" json:"event_type"`
	ValueBlob  []byte          `db:"value_blob" json:"-"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

func NewEvent(
	originID uuid.UUID,
	occurredAt time.Time,
	page, eventType string,
	valueBlob []byte,
	metadata map[string]any) (*Event, error) {

	e := &Event{
		ID:         uuid.New(),
		OriginID:   originID,
		OccurredAt: occurredAt.UTC(),
		Page:       page,
		EventType:  eventType,
		ValueBlob:  valueBlob,
		CreatedAt:  time.Now().UTC(),
	}

	if metadata != nil {
		metadataBytes, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		e.Metadata = metadataBytes
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Event) Validate() error {
	if e.OriginID == uuid.Nil {
		return ErrInvalidOrigin
	}
	if e.Page == "" {
		return ErrInvalidPage
	}
	if e.OccurredAt.IsZero() {
		return ErrInvalidTimestamp
	}
	switch e.EventType {
	case TypePageview, TypeSession, TypeConversion, TypeCustom:
		return nil
	default:
		return ErrInvalidEventType
	}
}

// Notification is the Kafka payload emitted after an event is accepted. It
// carries just enough for the aggregator to know which origin to recompute.
type Notification struct {
	OriginID   uuid.UUID `json:"origin_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
}
