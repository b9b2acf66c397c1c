package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/narrativelens/internal/analysis"
	"github.com/kalambet/narrativelens/internal/article"
	"github.com/kalambet/narrativelens/internal/embedding"
	"github.com/kalambet/narrativelens/internal/history"
	"github.com/kalambet/narrativelens/internal/reduce"
)

// MinClusterBatch is the smallest batch for which Run attempts clustering.
const MinClusterBatch = 3

const defaultConcurrency = 4

// Analyzer produces a normalized verdict for one article.
type Analyzer interface {
	Analyze(ctx context.Context, article string) analysis.Result
}

// Embedder embeds a batch of texts, dropping the unusable ones.
type Embedder interface {
	Generate(ctx context.Context, texts []string) (embedding.Batch, error)
}

// Merger persists records into the history.
type Merger interface {
	Merge(ctx context.Context, recs []analysis.Record) (history.MergeResult, error)
}

// ReduceFunc projects vectors onto a plane.
type ReduceFunc func(vectors [][]float64) (reduce.Layout, reduce.Method, error)

// Pipeline runs a batch of articles through analysis, history and
// clustering.
type Pipeline struct {
	analyzer    Analyzer
	embedder    Embedder
	history     Merger
	reduce      ReduceFunc
	concurrency int
}

// New creates a Pipeline. embedder and hist may be nil, which disables
// clustering and history respectively. concurrency bounds the in-flight
// model calls (default 4 if <= 0).
func New(analyzer Analyzer, embedder Embedder, hist Merger, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Pipeline{
		analyzer:    analyzer,
		embedder:    embedder,
		history:     hist,
		reduce:      reduce.Reduce,
		concurrency: concurrency,
	}
}

// NormalizeAll normalizes every raw model response. The result is aligned
// with raws; unparseable responses become error records.
func (p *Pipeline) NormalizeAll(ctx context.Context, raws []string) []analysis.Record {
	out := make([]analysis.Record, len(raws))
	var eg errgroup.Group
	eg.SetLimit(p.concurrency)
	for i, raw := range raws {
		eg.Go(func() error {
			out[i] = analysis.Normalize(raw)
			return nil
		})
	}
	eg.Wait()
	return out
}

// AnalyzeAll asks the model about every article and attaches what is known
// about each article's provenance. The result is aligned with articles.
func (p *Pipeline) AnalyzeAll(ctx context.Context, articles []article.Article) []analysis.Result {
	out := make([]analysis.Result, len(articles))
	var eg errgroup.Group
	eg.SetLimit(p.concurrency)
	for i, a := range articles {
		eg.Go(func() error {
			res := p.analyzer.Analyze(ctx, a.Text)
			res.Record = res.Record.WithPublished(a.Published).WithSource(a.Source)
			out[i] = res
			return nil
		})
	}
	eg.Wait()
	return out
}

// ClusterPoint is one text placed on the plane.
type ClusterPoint struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// ClusterResult is the layout of the texts that survived cleaning.
type ClusterResult struct {
	Method reduce.Method  `json:"method"`
	Points []ClusterPoint `json:"points"`
}

// Texts returns the clustered texts in layout order.
func (c ClusterResult) Texts() []string {
	out := make([]string, len(c.Points))
	for i, pt := range c.Points {
		out[i] = pt.Text
	}
	return out
}

// Cluster embeds texts and projects them onto the plane. Too few usable
// texts yield analysis.ErrInsufficientData and unprojectable geometry
// analysis.ErrDegenerateGeometry.
func (p *Pipeline) Cluster(ctx context.Context, texts []string) (ClusterResult, error) {
	if p.embedder == nil {
		return ClusterResult{}, errors.New("clustering is not configured")
	}

	batch, err := p.embedder.Generate(ctx, texts)
	if err != nil {
		return ClusterResult{}, fmt.Errorf("embedding: %w", err)
	}

	layout, method, err := p.reduce(batch.Vectors())
	if err != nil {
		return ClusterResult{}, fmt.Errorf("reducing %d vectors: %w", batch.Len(), err)
	}

	res := ClusterResult{Method: method, Points: make([]ClusterPoint, len(layout))}
	for i, pt := range layout {
		res.Points[i] = ClusterPoint{Text: batch.Items[i].Text, X: pt.X, Y: pt.Y}
	}
	return res, nil
}

// Report is the outcome of one Run.
type Report struct {
	Results  []analysis.Result    `json:"results"`
	History  *history.MergeResult `json:"history,omitempty"`
	Cluster  *ClusterResult       `json:"cluster,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`

	// HistoryErr is set when the history could not be updated. It wraps
	// analysis.ErrStoreUnavailable for storage failures.
	HistoryErr error `json:"-"`

	DurationMs int64 `json:"duration_ms"`
}

// Failed returns the number of results that are error records.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Record.Failed() {
			n++
		}
	}
	return n
}

// Records returns the record of every result, in order.
func (r Report) Records() []analysis.Record {
	out := make([]analysis.Record, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Record
	}
	return out
}

// Run analyzes articles, merges the verdicts into the history and, for
// batches of at least MinClusterBatch articles, clusters their texts.
// History and clustering failures are reported, never fatal.
func (p *Pipeline) Run(ctx context.Context, articles []article.Article) (rep Report) {
	start := time.Now()
	defer func() {
		rep.DurationMs = time.Since(start).Milliseconds()
	}()

	rep.Results = p.AnalyzeAll(ctx, articles)
	if n := rep.Failed(); n > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d of %d articles could not be analyzed", n, len(articles)))
	}

	if p.history != nil {
		merged, err := p.history.Merge(ctx, rep.Records())
		if err != nil {
			slog.Error("history merge failed", "error", err)
			rep.HistoryErr = err
			rep.Warnings = append(rep.Warnings, "history not updated: "+err.Error())
		} else {
			rep.History = &merged
		}
	}

	if p.embedder != nil && len(articles) >= MinClusterBatch {
		cl, err := p.Cluster(ctx, article.Texts(articles))
		switch {
		case err == nil:
			rep.Cluster = &cl
		case errors.Is(err, analysis.ErrInsufficientData), errors.Is(err, analysis.ErrDegenerateGeometry):
			slog.Warn("skipping cluster view", "error", err)
			rep.Warnings = append(rep.Warnings, "cluster view skipped: "+err.Error())
		default:
			slog.Error("clustering failed", "error", err)
			rep.Warnings = append(rep.Warnings, "clustering failed: "+err.Error())
		}
	}

	slog.Debug("pipeline run complete",
		"articles", len(articles),
		"failed", rep.Failed(),
		"clustered", rep.Cluster != nil,
	)
	return rep
}
