package proof

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is a decrypted per-day per-metric total. Rows are derived data,
// recomputable from events; proof generation writes them, nothing else does.
type Aggregate struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OriginID  uuid.UUID `db:"origin_id" json:"origin_id"`
	Day       time.Time `db:"day" json:"day"`
	Metric    string    `db:"metric" json:"metric"`
	Value     float64   `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Proof is the digest handed to external anchoring. This service only
// produces the hash input and its CID-style name; anchoring itself lives
// outside the pipeline.
type Proof struct {
	Digest     string             `json:"digest"`
	CID        string             `json:"cid"`
	Aggregates map[string]float64 `json:"aggregates"`
}
