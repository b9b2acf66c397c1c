package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/narrativelens/internal/engine"
)

const (
	defaultTimeout = 60 * time.Second
	modelFailedMsg = "Model call failed"
)

// Chatter is the outbound model call.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Result pairs a normalized record with the raw response it came from.
type Result struct {
	Raw    string `json:"raw,omitempty"`
	Record Record `json:"record"`
}

// Analyzer asks a chat model for a verdict about an article and normalizes
// the answer.
type Analyzer struct {
	client   Chatter
	model    string
	template string
	timeout  time.Duration
}

// NewAnalyzer creates an Analyzer. An empty template selects the built-in
// prompt; a non-positive timeout defaults to 60s.
func NewAnalyzer(client Chatter, model, template string, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Analyzer{client: client, model: model, template: template, timeout: timeout}
}

// Analyze returns the normalized verdict for article. Model failures yield an
// error record so that one bad article never aborts a batch.
func (a *Analyzer) Analyze(ctx context.Context, article string) Result {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Chat(ctx, a.model, BuildPrompt(a.template, article), verdictSchema())
	if err != nil {
		slog.Warn("analysis chat failed", "model", a.model, "error", err)
		return Result{Record: failure(modelFailedMsg, err)}
	}

	rec := Normalize(raw)
	if rec.Failed() {
		slog.Warn("failed to normalize model response", "details", rec.Details, "response", raw)
	}
	return Result{Raw: raw, Record: rec}
}

func verdictSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"bias":      {Type: "string", Description: "One of: left, center, right"},
			"emotion":   {Type: "string", Description: "Comma-separated emotional tones"},
			"framing":   {Type: "string", Description: "Framing style"},
			"omissions": {Type: "string", Description: "Omitted perspectives"},
		},
		Required: []string{"bias", "emotion", "framing", "omissions"},
	}
}
