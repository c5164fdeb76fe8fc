// Package codec abstracts how per-event metric values are turned into opaque
// blobs and how blobs are combined into aggregate blobs. Callers may only rely
// on the Encode/Aggregate/Decode contract; the concrete scheme is swappable so
// a real additively homomorphic scheme can replace the placeholder without
// touching the pipeline.
package codec

import (
	"encoding/json"
	"fmt"
	"time"
)

type Codec interface {
	// Encode wraps a numeric metric value into an opaque blob.
	Encode(value float64) ([]byte, error)
	// Aggregate combines blobs into a single blob whose decoded value is the
	// arithmetic sum of the inputs' decoded values.
	Aggregate(blobs [][]byte) ([]byte, error)
	// Decode recovers the numeric value. Malformed input decodes to 0; the
	// pipeline treats unreadable blobs as lost data, not as a hard failure.
	Decode(blob []byte) float64
}

const jsonScheme = "veil-json/v1"

// JSONCodec is the placeholder scheme: a JSON envelope with the value in the
// clear. It provides no confidentiality. Aggregate decodes every input and
// re-encodes the sum, standing in for ciphertext addition.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

type envelope struct {
	Scheme     string    `json:"scheme"`
	Encrypted  bool      `json:"encrypted"`
	Value      float64   `json:"value"`
	CapturedAt time.Time `json:"captured_at"`
}

func (c *JSONCodec) Encode(value float64) ([]byte, error) {
	blob, err := json.Marshal(envelope{
		Scheme:     jsonScheme,
		Encrypted:  true,
		Value:      value,
		CapturedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return blob, nil
}

func (c *JSONCodec) Aggregate(blobs [][]byte) ([]byte, error) {
	var sum float64
	for _, blob := range blobs {
		sum += c.Decode(blob)
	}
	return c.Encode(sum)
}

func (c *JSONCodec) Decode(blob []byte) float64 {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return 0
	}
	if env.Scheme != jsonScheme {
		return 0
	}
	return env.Value
}
