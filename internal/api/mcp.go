package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/narrativelens/internal/analysis"
)

const recentRecords = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline Runner
	History  HistoryReader
}

// NewMCPServer creates an MCP server with the narrative lens tools and
// resources registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"nlens",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("nlens: structured media-bias verdicts, semantic clustering of articles, and bias trends over time."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("normalize_response",
			mcp.WithDescription("Turn a free-text model verdict about an article into a structured record with bias, emotion, framing and omissions."),
			mcp.WithString("response", mcp.Description("The raw model response, optionally fenced as a json code block"), mcp.Required()),
		),
		mcpNormalizeResponse(deps),
	)

	s.AddTool(
		mcp.NewTool("bias_trend",
			mcp.WithDescription("Return the bias-over-time series derived from the stored analysis history."),
		),
		mcpBiasTrend(deps),
	)

	s.AddTool(
		mcp.NewTool("cluster_texts",
			mcp.WithDescription("Embed texts and project them onto a 2-D plane for visual clustering."),
			mcp.WithArray("texts", mcp.Description("Texts to cluster (at least two usable ones)"), mcp.Required()),
		),
		mcpClusterTexts(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Verdicts",
			mcp.WithResourceDescription(fmt.Sprintf("Last %d stored analysis records", recentRecords)),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpNormalizeResponse(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("response")
		if err != nil {
			return mcpError("response is required"), nil
		}

		rec := deps.Pipeline.NormalizeAll(ctx, []string{raw})[0]
		b, err := json.Marshal(rec)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		if rec.Failed() {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpBiasTrend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		points, err := deps.History.Trend(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("loading history failed: %v", err)), nil
		}
		if len(points) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(points)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal trend: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClusterTexts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		texts := req.GetStringSlice("texts", nil)
		if len(texts) == 0 {
			return mcpError("texts is required"), nil
		}

		res, err := deps.Pipeline.Cluster(ctx, texts)
		if err != nil {
			switch {
			case errors.Is(err, analysis.ErrInsufficientData):
				return mcpError(fmt.Sprintf("not enough usable texts to cluster: %v", err)), nil
			case errors.Is(err, analysis.ErrDegenerateGeometry):
				return mcpError(fmt.Sprintf("texts are too similar to lay out: %v", err)), nil
			}
			return mcpError(fmt.Sprintf("clustering failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal layout: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		recs, err := deps.History.Records(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		if len(recs) > recentRecords {
			recs = recs[len(recs)-recentRecords:]
		}

		type verdictSummary struct {
			ID        string `json:"id"`
			Bias      string `json:"bias"`
			Framing   string `json:"framing"`
			Published string `json:"published,omitempty"`
			Omissions string `json:"omissions"`
		}

		summaries := make([]verdictSummary, len(recs))
		for i, r := range recs {
			omissions := r.Omissions
			if utf8.RuneCountInString(omissions) > 200 {
				runes := []rune(omissions)
				omissions = string(runes[:200]) + "..."
			}
			summaries[i] = verdictSummary{
				ID:        r.ID,
				Bias:      r.Bias,
				Framing:   r.Framing,
				Published: r.Published,
				Omissions: omissions,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
