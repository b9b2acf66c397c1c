package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/narrativelens/internal/analysis"
	"github.com/kalambet/narrativelens/internal/config"
	"github.com/kalambet/narrativelens/internal/embedding"
	"github.com/kalambet/narrativelens/internal/engine"
	"github.com/kalambet/narrativelens/internal/history"
	"github.com/kalambet/narrativelens/internal/pipeline"
)

// needs selects which collaborators a command opens.
type needs struct {
	chat    bool
	embed   bool
	history bool
}

// app is the set of components one command invocation works with. Close
// releases the encoder handle and the history store.
type app struct {
	cfg      config.Config
	eng      engine.Engine
	gen      *embedding.Generator
	store    history.Store
	hist     *history.Aggregator
	pipeline *pipeline.Pipeline
}

func openApp(ctx context.Context, cfg config.Config, n needs, progress io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	var analyzer pipeline.Analyzer
	var embedder pipeline.Embedder
	var merger pipeline.Merger

	if n.chat || n.embed {
		eng, err := engine.Detect(engine.DetectConfig{OllamaBaseURL: cfg.Ollama.BaseURL})
		if err != nil {
			return nil, fmt.Errorf("detecting inference engine: %w", err)
		}
		var chatModel, embedModel string
		if n.chat {
			chatModel = cfg.Ollama.ChatModel
		}
		if n.embed {
			embedModel = cfg.Ollama.EmbedModel
		}
		if err := engine.EnsureReady(ctx, eng, chatModel, embedModel, progress); err != nil {
			return nil, err
		}
		a.eng = eng
	}

	if n.chat {
		tmpl, err := analysis.LoadTemplate(cfg.Analysis.PromptFile)
		if err != nil {
			return nil, err
		}
		analyzer = analysis.NewAnalyzer(a.eng, cfg.Ollama.ChatModel, tmpl, cfg.AnalysisTimeout())
	}

	if n.embed {
		a.gen = embedding.NewGenerator(a.eng, cfg.Ollama.EmbedModel, cfg.Analysis.Concurrency)
		embedder = a.gen
	}

	if n.history {
		store, err := history.Open(cfg.History.Backend, cfg.Storage.DataDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.store = store
		a.hist = history.NewAggregator(store)
		merger = a.hist
	}

	a.pipeline = pipeline.New(analyzer, embedder, merger, cfg.Analysis.Concurrency)
	return a, nil
}

func (a *app) Close() {
	if a.gen != nil {
		if err := a.gen.Close(context.Background()); err != nil {
			slog.Warn("releasing embedding model", "model", a.gen.Model(), "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("closing history store", "error", err)
		}
	}
}
