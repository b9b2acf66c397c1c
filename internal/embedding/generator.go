// Package embedding converts batches of article texts into dense vectors
// using a pretrained sentence encoder served by the inference engine.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/narrativelens/internal/analysis"
)

// MinTextLength is the shortest trimmed text, in characters, worth embedding.
const MinTextLength = 5

const defaultConcurrency = 4

var (
	// ErrNoEmbeddings reports that no text survived cleaning, as opposed to
	// a batch embedded into a zero-dimensional space.
	ErrNoEmbeddings = fmt.Errorf("no embeddings: %w", analysis.ErrInsufficientData)

	// ErrClosed is returned by Generate after Close.
	ErrClosed = errors.New("embedding generator is closed")
)

// Encoder is the handle to the sentence encoder. It is owned by the caller,
// shared across batches, and released through Generator.Close.
type Encoder interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
	Unload(ctx context.Context, model string) error
}

// Generator embeds batches of texts with one encoder model.
type Generator struct {
	enc         Encoder
	model       string
	concurrency int

	mu     sync.Mutex
	closed bool
}

// NewGenerator creates a Generator for model. concurrency bounds in-flight
// encoder calls (default 4 if <= 0).
func NewGenerator(enc Encoder, model string, concurrency int) *Generator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Generator{enc: enc, model: model, concurrency: concurrency}
}

// Model returns the encoder model name.
func (g *Generator) Model() string {
	return g.model
}

// Clean trims every text and drops those shorter than MinTextLength,
// preserving the order of the survivors.
func Clean(texts []string) []string {
	var out []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if utf8.RuneCountInString(t) < MinTextLength {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Generate cleans texts and embeds the survivors concurrently. The returned
// batch is aligned with the cleaned texts. When nothing survives cleaning
// it returns ErrNoEmbeddings without calling the encoder.
func (g *Generator) Generate(ctx context.Context, texts []string) (Batch, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return Batch{}, ErrClosed
	}

	clean := Clean(texts)
	if len(clean) == 0 {
		return Batch{}, ErrNoEmbeddings
	}

	items := make([]Item, len(clean))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, text := range clean {
		eg.Go(func() error {
			vec, err := g.enc.Embed(egCtx, g.model, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			items[i] = Item{Text: text, Vector: vec}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Batch{}, err
	}

	b := Batch{Items: items}
	if err := b.validate(); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// Close unloads the encoder model. Further Generate calls fail with
// ErrClosed. Close is idempotent.
func (g *Generator) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	if err := g.enc.Unload(ctx, g.model); err != nil {
		return fmt.Errorf("releasing encoder: %w", err)
	}
	return nil
}
