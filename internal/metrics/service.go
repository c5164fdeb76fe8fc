package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/veilstats/veil-analytics/internal/codec"
	"github.com/veilstats/veil-analytics/internal/event"
	"go.uber.org/zap"
)

type Config struct {
	// RecentWindowLimit bounds how many events a recompute scans. Totals are
	// an approximation over the newest N events once an origin exceeds it.
	RecentWindowLimit int
	// VisitorRatio approximates unique visitors as a fixed share of sessions.
	// Inherited product heuristic, not measured uniqueness.
	VisitorRatio   float64
	TimeSeriesDays int
	TopPagesLimit  int
}

type Service struct {
	events event.Repository
	codec  codec.Codec
	cfg    Config
	logger *zap.Logger

	now func() time.Time
}

func NewService(events event.Repository, cdc codec.Codec, cfg Config, logger *zap.Logger) *Service {
	if cfg.RecentWindowLimit <= 0 {
		cfg.RecentWindowLimit = 1000
	}
	if cfg.TimeSeriesDays <= 0 {
		cfg.TimeSeriesDays = 7
	}
	if cfg.TopPagesLimit <= 0 {
		cfg.TopPagesLimit = 5
	}

	return &Service{
		events: events,
		codec:  cdc,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) ComputeMetrics(ctx context.Context, originID uuid.UUID) (*Metrics, error) {
	window, err := s.events.RecentWindow(ctx, originID, s.cfg.RecentWindowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read event window: %w", err)
	}
	return s.deriveMetrics(window)
}

func (s *Service) ComputeTimeSeries(ctx context.Context, originID uuid.UUID) ([]TimeSeriesPoint, error) {
	window, err := s.events.RecentWindow(ctx, originID, s.cfg.RecentWindowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read event window: %w", err)
	}
	return s.deriveTimeSeries(window)
}

func (s *Service) ComputeTopPages(ctx context.Context, originID uuid.UUID) ([]PageCount, error) {
	window, err := s.events.RecentWindow(ctx, originID, s.cfg.RecentWindowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read event window: %w", err)
	}
	return s.deriveTopPages(window), nil
}

// ComputeSnapshot derives all dashboard views from a single window read so
// one recompute cycle costs one store query.
func (s *Service) ComputeSnapshot(ctx context.Context, originID uuid.UUID) (*Snapshot, error) {
	window, err := s.events.RecentWindow(ctx, originID, s.cfg.RecentWindowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read event window: %w", err)
	}

	m, err := s.deriveMetrics(window)
	if err != nil {
		return nil, err
	}

	series, err := s.deriveTimeSeries(window)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Metrics:     m,
		TimeSeries:  series,
		TopPages:    s.deriveTopPages(window),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// sumByType runs the blobs of one partition through the codec's aggregate
// path and decodes only the combined blob, the same shape a homomorphic
// scheme would take.
func (s *Service) sumByType(window []*event.Event, eventType string) (float64, error) {
	var blobs [][]byte
	for _, e := range window {
		if e.EventType == eventType {
			blobs = append(blobs, e.ValueBlob)
		}
	}
	if len(blobs) == 0 {
		return 0, nil
	}

	combined, err := s.codec.Aggregate(blobs)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate %s blobs: %w", eventType, err)
	}
	return s.codec.Decode(combined), nil
}

func (s *Service) deriveMetrics(window []*event.Event) (*Metrics, error) {
	pageviews, err := s.sumByType(window, event.TypePageview)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sumByType(window, event.TypeSession)
	if err != nil {
		return nil, err
	}
	conversions, err := s.sumByType(window, event.TypeConversion)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		Pageviews:   int64(pageviews),
		Sessions:    int64(sessions),
		Conversions: int64(conversions),
		Visitors:    int64(math.Floor(sessions * s.cfg.VisitorRatio)),
	}

	// Both denominators must be guarded: an origin can have sessions without
	// pageviews (conversion-only traffic).
	if m.Sessions > 0 && m.Pageviews > 0 {
		m.AvgSession = int64(math.Floor(pageviews / sessions))
		m.BounceRate = int64(math.Floor((1 - float64(m.AvgSession)/pageviews) * 100))
	}

	return m, nil
}

func (s *Service) deriveTimeSeries(window []*event.Event) ([]TimeSeriesPoint, error) {
	type bucket struct {
		pageviews [][]byte
		sessions  [][]byte
	}

	buckets := make(map[string]*bucket)
	for _, e := range window {
		day := e.OccurredAt.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		switch e.EventType {
		case event.TypePageview:
			b.pageviews = append(b.pageviews, e.ValueBlob)
		case event.TypeSession:
			b.sessions = append(b.sessions, e.ValueBlob)
		}
	}

	sum := func(blobs [][]byte) (float64, error) {
		if len(blobs) == 0 {
			return 0, nil
		}
		combined, err := s.codec.Aggregate(blobs)
		if err != nil {
			return 0, err
		}
		return s.codec.Decode(combined), nil
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	points := make([]TimeSeriesPoint, 0, s.cfg.TimeSeriesDays)

	// Oldest day first, through today. Days with no events emit zeros.
	for i := s.cfg.TimeSeriesDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		point := TimeSeriesPoint{Date: day}

		if b, ok := buckets[day]; ok {
			pageviews, err := sum(b.pageviews)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate day %s: %w", day, err)
			}
			sessions, err := sum(b.sessions)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate day %s: %w", day, err)
			}
			point.Pageviews = int64(pageviews)
			point.Visitors = int64(math.Floor(sessions * s.cfg.VisitorRatio))
		}

		points = append(points, point)
	}

	return points, nil
}

func (s *Service) deriveTopPages(window []*event.Event) []PageCount {
	counts := make(map[string]int64)
	for _, e := range window {
		counts[e.Page]++
	}

	pages := make([]PageCount, 0, len(counts))
	for page, views := range counts {
		pages = append(pages, PageCount{Page: page, Views: views})
	}

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Views != pages[j].Views {
			return pages[i].Views > pages[j].Views
		}
		return pages[i].Page < pages[j].Page
	})

	if len(pages) > s.cfg.TopPagesLimit {
		pages = pages[:s.cfg.TopPagesLimit]
	}

	return pages
}
