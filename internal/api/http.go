package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/narrativelens/internal/analysis"
	"github.com/kalambet/narrativelens/internal/article"
	"github.com/kalambet/narrativelens/internal/history"
	"github.com/kalambet/narrativelens/internal/pipeline"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxAnalyzeBodySize = 10 << 20 // 10MB
	maxArticlesPerCall = 50
	defaultHistoryLim  = 100
)

// Runner is the analysis pipeline as seen by the API layer.
type Runner interface {
	NormalizeAll(ctx context.Context, raws []string) []analysis.Record
	Run(ctx context.Context, articles []article.Article) pipeline.Report
	Cluster(ctx context.Context, texts []string) (pipeline.ClusterResult, error)
}

// HistoryReader reads the persisted history.
type HistoryReader interface {
	Records(ctx context.Context) ([]analysis.Record, error)
	Trend(ctx context.Context) ([]history.TrendPoint, error)
}

type Deps struct {
	Pipeline   Runner
	History    HistoryReader
	Token      string
	HTTPClient *http.Client // used to fetch articles given by URL
	Search     article.Searcher
}

// NewHandler returns the HTTP API. /health is open; every other route
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/normalize", handleNormalize(deps))
		r.Post("/analyze", handleAnalyze(deps))
		r.Post("/cluster", handleCluster(deps))
		r.Get("/history", handleHistory(deps))
		r.Get("/history/trend", handleTrend(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type NormalizeRequest struct {
	Responses []string `json:"responses"`
}

type normalizedRecord struct {
	analysis.Record
	Emotions []analysis.EmotionCount `json:"emotions,omitempty"`
}

func handleNormalize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NormalizeRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if len(req.Responses) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "responses is required")
			return
		}

		recs := deps.Pipeline.NormalizeAll(r.Context(), req.Responses)
		out := make([]normalizedRecord, len(recs))
		for i, rec := range recs {
			out[i] = normalizedRecord{Record: rec}
			if !rec.Failed() {
				out[i].Emotions = analysis.EmotionProfile(rec.Emotion)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": out})
	}
}

// AnalyzeRequest names articles inline, as one "---"-separated text, by
// URL, or as a news search query. All of them may be combined.
type AnalyzeRequest struct {
	Articles []article.Article `json:"articles"`
	Text     string            `json:"text"`
	URLs     []string          `json:"urls"`
	Query    string            `json:"query"`
	Limit    int               `json:"limit"`
}

type analyzeResponse struct {
	pipeline.Report
	HistoryError string `json:"history_error,omitempty"`
}

func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if !decodeBody(w, r, maxAnalyzeBodySize, &req) {
			return
		}

		articles := append([]article.Article(nil), req.Articles...)
		articles = append(articles, article.FromTexts(article.Split(req.Text))...)
		for _, u := range req.URLs {
			a, err := article.Fetch(r.Context(), deps.HTTPClient, u)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch article: %v", err)
				return
			}
			articles = append(articles, a)
		}
		if q := strings.TrimSpace(req.Query); q != "" {
			if deps.Search == nil {
				httpError(w, http.StatusNotImplemented, "not_configured", "%v", article.ErrSearchNotConfigured)
				return
			}
			found, err := deps.Search.Search(r.Context(), q, req.Limit)
			switch {
			case errors.Is(err, article.ErrSearchNotConfigured):
				httpError(w, http.StatusNotImplemented, "not_configured", "%v", err)
				return
			case err != nil:
				httpError(w, http.StatusBadGateway, "api_error", "news search failed: %v", err)
				return
			}
			articles = append(articles, found...)
		}

		if len(articles) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of articles, text, urls or query is required")
			return
		}
		if len(articles) > maxArticlesPerCall {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "too many articles: %d (max %d)", len(articles), maxArticlesPerCall)
			return
		}

		rep := deps.Pipeline.Run(r.Context(), articles)
		resp := analyzeResponse{Report: rep}
		if rep.HistoryErr != nil {
			resp.HistoryError = rep.HistoryErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type ClusterRequest struct {
	Texts []string `json:"texts"`
}

func handleCluster(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClusterRequest
		if !decodeBody(w, r, maxAnalyzeBodySize, &req) {
			return
		}

		res, err := deps.Pipeline.Cluster(r.Context(), req.Texts)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, analysis.ErrInsufficientData):
			httpError(w, http.StatusUnprocessableEntity, "insufficient_data", "%v", err)
		case errors.Is(err, analysis.ErrDegenerateGeometry):
			httpError(w, http.StatusUnprocessableEntity, "degenerate_geometry", "%v", err)
		default:
			slog.Error("cluster request failed", "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "clustering failed: %v", err)
		}
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLim
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = n
		}

		recs, err := deps.History.Records(r.Context())
		if err != nil {
			historyError(w, err)
			return
		}
		total := len(recs)
		if len(recs) > limit {
			recs = recs[len(recs)-limit:]
		}
		if recs == nil {
			recs = []analysis.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recs, "total": total})
	}
}

func handleTrend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := deps.History.Trend(r.Context())
		if err != nil {
			historyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"points": points})
	}
}

func historyError(w http.ResponseWriter, err error) {
	if errors.Is(err, analysis.ErrStoreUnavailable) {
		httpError(w, http.StatusServiceUnavailable, "store_unavailable", "%v", err)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
