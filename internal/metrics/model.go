package metrics

import "time"

type Metrics struct {
	Visitors    int64 `json:"visitors"`
	Pageviews   int64 `json:"pageviews"`
	Sessions    int64 `json:"sessions"`
	AvgSession  int64 `json:"avgSession"`
	BounceRate  int64 `json:"bounceRate"`
	Conversions int64 `json:"conversions"`
}

type TimeSeriesPoint struct {
	Date      string `json:"date"`
	Visitors  int64  `json:"visitors"`
	Pageviews int64  `json:"pageviews"`
}

type PageCount struct {
	Page  string `json:"page"`
	Views int64  `json:"views"`
}

// Snapshot is the full dashboard payload, computed per recompute cycle and
// pushed as one frame to live subscribers.
type Snapshot struct {
	Metrics     *Metrics          `json:"metrics"`
	TimeSeries  []TimeSeriesPoint `json:"timeSeries"`
	TopPages    []PageCount       `json:"topPages"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
