package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/narrativelens/internal/analysis"
)

// MergeResult summarizes one Merge call. Only valid records reach the
// store, so a store holding m records before the call holds
// Total == m + Appended after it; Skipped counts the error records left out.
type MergeResult struct {
	Appended int `json:"appended"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Aggregator merges freshly analyzed records into a Store and reads the
// trend back out.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// NewAggregator returns an Aggregator over store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, logger: slog.Default()}
}

// Merge appends the successfully normalized records in recs, in order.
// Error records are skipped and counted. Each appended record gets an id if
// it has none, and its publication timestamp in canonical form when it can
// be parsed.
func (a *Aggregator) Merge(ctx context.Context, recs []analysis.Record) (MergeResult, error) {
	var res MergeResult
	keep := make([]analysis.Record, 0, len(recs))
	for _, r := range recs {
		if r.Failed() {
			res.Skipped++
			continue
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if ts, ok := NormalizeTimestamp(r.Published); ok {
			r.Published = ts
		} else {
			a.logger.Warn("keeping unrecognized publication timestamp", "id", r.ID, "published", r.Published)
		}
		keep = append(keep, r)
	}

	if len(keep) == 0 {
		existing, err := a.store.Load(ctx)
		if err != nil {
			return res, fmt.Errorf("loading history: %w", err)
		}
		res.Total = len(existing)
		return res, nil
	}

	total, err := a.store.Append(ctx, keep)
	if err != nil {
		return res, fmt.Errorf("appending to history: %w", err)
	}
	res.Appended = len(keep)
	res.Total = total
	return res, nil
}

// Records returns the full history in stored order.
func (a *Aggregator) Records(ctx context.Context) ([]analysis.Record, error) {
	recs, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return recs, nil
}

// Trend loads the history and derives its bias series.
func (a *Aggregator) Trend(ctx context.Context) ([]TrendPoint, error) {
	recs, err := a.Records(ctx)
	if err != nil {
		return nil, err
	}
	return Series(recs), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp rewrites ts as a UTC RFC 3339 timestamp. Values without
// a zone are taken as UTC. An empty ts is returned as is; ok is false when
// ts matches none of the accepted layouts, in which case ts comes back
// unchanged.
func NormalizeTimestamp(ts string) (string, bool) {
	if ts == "" {
		return "", true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return ts, false
}
