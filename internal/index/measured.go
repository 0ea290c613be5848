package index

import (
	"context"
	"time"

	"github.com/tgruber/sourceqa/internal/metrics"
)

// Measured wraps an Index and records query timings and failures in a
// collector. Upsert and Delete pass through untouched; the ingestion
// pipeline times its own writes.
type Measured struct {
	Index
	stats *metrics.Collector
}

// NewMeasured wraps idx so queries report into stats.
func NewMeasured(idx Index, stats *metrics.Collector) *Measured {
	if stats == nil {
		stats = metrics.NewCollector()
	}
	return &Measured{Index: idx, stats: stats}
}

func (m *Measured) Query(ctx context.Context, text string, k int, threshold float64) ([]Match, error) {
	start := time.Now()
	matches, err := m.Index.Query(ctx, text, k, threshold)
	if err != nil {
		m.stats.RecordError(metrics.OpIndexQuery)
		return nil, err
	}
	m.stats.RecordTiming(metrics.OpIndexQuery, time.Since(start))
	return matches, nil
}
