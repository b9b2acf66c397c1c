package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/narrativelens/internal/analysis"
	"github.com/kalambet/narrativelens/internal/article"
	"github.com/kalambet/narrativelens/internal/config"
	"github.com/kalambet/narrativelens/internal/history"
	"github.com/kalambet/narrativelens/internal/pipeline"
)

const fetchTimeout = 15 * time.Second

// loadConfig is swapped out in tests.
var loadConfig = config.Load

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze articles for bias, tone, framing and omissions",
	Long: `Analyze one or more articles. Each verdict is normalized, appended to the
history and, for three or more articles, the batch is laid out by meaning.

Examples:
  nlens analyze --text "First article...
---
Second article..."
  nlens analyze --file report.pdf --file page.html
  nlens analyze --url https://example.com/story --output results.json
  nlens analyze --query "minimum wage" --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var src articleSources
		src.text, _ = cmd.Flags().GetString("text")
		src.files, _ = cmd.Flags().GetStringArray("file")
		src.urls, _ = cmd.Flags().GetStringArray("url")
		src.query, _ = cmd.Flags().GetString("query")
		src.limit, _ = cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		asJSON, _ := cmd.Flags().GetBool("json")

		if src.empty() {
			return fmt.Errorf("one of --text, --file, --url or --query is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		client := &http.Client{Timeout: fetchTimeout}
		var search article.Searcher
		if strings.TrimSpace(src.query) != "" {
			if err := cfg.RequireNewsKey(); err != nil {
				return err
			}
			if src.limit <= 0 {
				src.limit = cfg.News.Limit
			}
			search = newsSearcher(cfg, client)
		}

		ctx := cmd.Context()
		articles, err := gatherArticles(ctx, client, search, src)
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			return fmt.Errorf("no article text found in the given input")
		}

		a, err := openApp(ctx, cfg, needs{chat: true, embed: true, history: true}, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Analyzing %d article(s) with %s...", len(articles), cfg.Ollama.ChatModel)
		rep := a.pipeline.Run(ctx, articles)

		out := cmd.OutOrStdout()
		if asJSON {
			if err := writeJSON(out, rep); err != nil {
				return err
			}
		} else {
			writeReport(out, articles, rep)
		}

		for _, w := range rep.Warnings {
			printWarning("%s", w)
		}
		if output != "" {
			if err := exportResults(output, rep.Records()); err != nil {
				return err
			}
			printSuccess("Results written to %s", output)
		}
		if rep.History != nil {
			printSuccess("History: %d appended, %d total", rep.History.Appended, rep.History.Total)
		}
		if rep.HistoryErr != nil {
			return fmt.Errorf("history not updated: %w", rep.HistoryErr)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("text", "", `article text; separate several articles with a "---" line`)
	analyzeCmd.Flags().StringArray("file", nil, "article file (.pdf, .html or text), repeatable")
	analyzeCmd.Flags().StringArray("url", nil, "article URL to fetch, repeatable")
	analyzeCmd.Flags().String("query", "", "search recent news for this query and analyze the hits")
	analyzeCmd.Flags().Int("limit", 0, "how many search hits to analyze (default news.limit)")
	analyzeCmd.Flags().String("output", "", "write the batch results as a JSON array to this file")
	analyzeCmd.Flags().Bool("json", false, "print the full report as JSON")
}

// articleSources is every place analyze can take articles from.
type articleSources struct {
	text  string
	files []string
	urls  []string
	query string
	limit int
}

func (s articleSources) empty() bool {
	return strings.TrimSpace(s.text) == "" && len(s.files) == 0 && len(s.urls) == 0 && strings.TrimSpace(s.query) == ""
}

func newsSearcher(cfg config.Config, client *http.Client) *article.NewsAPI {
	return article.NewNewsAPI(client, cfg.News.BaseURL, cfg.News.APIKey)
}

// gatherArticles collects articles from pasted text, files, URLs and a news
// search, in that order. Any failure aborts the whole batch.
func gatherArticles(ctx context.Context, client *http.Client, search article.Searcher, src articleSources) ([]article.Article, error) {
	articles := article.FromTexts(article.Split(src.text))

	for _, path := range src.files {
		a, err := article.Load(path)
		if err != nil {
			return nil, err
		}
		for _, t := range article.Split(a.Text) {
			articles = append(articles, article.Article{Text: t, Source: a.Source, Published: a.Published})
		}
	}

	for _, u := range src.urls {
		printStep("Fetching %s...", u)
		a, err := article.Fetch(ctx, client, u)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	if q := strings.TrimSpace(src.query); q != "" {
		if search == nil {
			return nil, article.ErrSearchNotConfigured
		}
		printStep("Searching news for %q...", q)
		found, err := search.Search(ctx, q, src.limit)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			printWarning("No news articles found for %q", q)
		}
		articles = append(articles, found...)
	}
	return articles, nil
}

func writeReport(w io.Writer, articles []article.Article, rep pipeline.Report) {
	for i, res := range rep.Results {
		var source string
		if i < len(articles) {
			source = articles[i].Source
		}
		writeRecord(w, i+1, source, res.Record)
		fmt.Fprintln(w)
	}
	if rep.Cluster != nil {
		writeCluster(w, *rep.Cluster)
	}
}

func writeCluster(w io.Writer, cl pipeline.ClusterResult) {
	fmt.Fprintf(w, "%s (%s)\n", colorize(colorBold, "Semantic map"), cl.Method)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  X\tY\tTEXT")
	for _, pt := range cl.Points {
		fmt.Fprintf(tw, "  %.3f\t%.3f\t%s\n", pt.X, pt.Y, snippet(pt.Text, 60))
	}
	tw.Flush()
}

// exportResults writes the records as an indented JSON array.
func exportResults(path string, recs []analysis.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeJSON(f, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// --- normalize ---

var normalizeCmd = &cobra.Command{
	Use:   "normalize [response...]",
	Short: "Normalize raw model verdicts into structured records",
	Long: `Normalize raw model verdicts without calling a model. Each argument or
--file is one response; with neither, one response is read from stdin.

Examples:
  nlens normalize '{"Political Bias": "Left", "Emotional Tone": "Angry"}'
  ollama run llama3.1 < prompt.txt | nlens normalize`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("file")

		raws := append([]string(nil), args...)
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			raws = append(raws, string(data))
		}
		if len(raws) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			raws = append(raws, string(data))
		}

		p := pipeline.New(nil, nil, nil, 0)
		recs := p.NormalizeAll(cmd.Context(), raws)
		if err := writeJSON(cmd.OutOrStdout(), recs); err != nil {
			return err
		}

		failed := 0
		for _, r := range recs {
			if r.Failed() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d responses could not be normalized", failed, len(recs))
		}
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringArray("file", nil, "file holding one raw response, repeatable")
}

// --- cluster ---

var clusterCmd = &cobra.Command{
	Use:   "cluster [text...]",
	Short: "Lay texts out on a plane by meaning",
	Long: `Embed texts and project them onto two dimensions. Fewer than five texts
are projected with PCA, larger batches with UMAP.

Examples:
  nlens cluster "first text" "second text" "third text"
  nlens cluster --file a.pdf --file b.html --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		files, _ := cmd.Flags().GetStringArray("file")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ctx := cmd.Context()
		articles, err := gatherArticles(ctx, nil, nil, articleSources{text: text, files: files})
		if err != nil {
			return err
		}
		texts := append(append([]string(nil), args...), article.Texts(articles)...)
		if len(texts) < 2 {
			return fmt.Errorf("at least two texts are required, got %d", len(texts))
		}

		a, err := openApp(ctx, cfg, needs{embed: true}, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.Cluster(ctx, texts)
		switch {
		case errors.Is(err, analysis.ErrInsufficientData):
			return fmt.Errorf("not enough usable texts to cluster: %w", err)
		case errors.Is(err, analysis.ErrDegenerateGeometry):
			return fmt.Errorf("texts are too similar to lay out: %w", err)
		case err != nil:
			return err
		}

		if dropped := len(texts) - len(res.Points); dropped > 0 {
			printWarning("%d text(s) too short to embed were skipped", dropped)
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		writeCluster(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	clusterCmd.Flags().String("text", "", `texts separated by "---" lines`)
	clusterCmd.Flags().StringArray("file", nil, "text file (.pdf, .html or text), repeatable")
	clusterCmd.Flags().Bool("json", false, "print the layout as JSON")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the analysis history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored verdicts, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openHistory()
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.hist.Records(cmd.Context())
		if err != nil {
			return err
		}
		total := len(recs)
		if limit > 0 && len(recs) > limit {
			recs = recs[len(recs)-limit:]
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if recs == nil {
				recs = []analysis.Record{}
			}
			return writeJSON(out, recs)
		}
		if total == 0 {
			printStatus("History", "empty")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PUBLISHED\tBIAS\tFRAMING\tSOURCE\tID")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", orDash(r.Published), r.Bias, r.Framing, orDash(r.Source), r.ID)
		}
		tw.Flush()
		printStatus("Records", "%d shown of %d", len(recs), total)
		return nil
	},
}

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show the bias-over-time series",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openHistory()
		if err != nil {
			return err
		}
		defer a.Close()

		points, err := a.hist.Trend(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if points == nil {
				points = []history.TrendPoint{}
			}
			return writeJSON(out, points)
		}
		if len(points) == 0 {
			printStatus("Trend", "no dated verdicts with a known bias")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tBIAS\tSCORE\tSNIPPET")
		for _, p := range points {
			fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\n", p.Date, colorize(biasColor(p.BiasLabel), p.BiasLabel), p.BiasScore, p.Snippet)
		}
		return tw.Flush()
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "show at most this many of the latest records (0 for all)")
	historyListCmd.Flags().Bool("json", false, "print records as JSON")
	historyTrendCmd.Flags().Bool("json", false, "print the series as JSON")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyTrendCmd)
}

func openHistory() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return openApp(context.Background(), cfg, needs{history: true}, io.Discard)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, "server.api_token"), presence(cfg.Server.APIToken))
		fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, "news.api_key"), presence(cfg.News.APIKey))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// presence reports whether a secret is set without showing it.
func presence(secret string) string {
	if secret == "" {
		return "not set"
	}
	return "set"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
