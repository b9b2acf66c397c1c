package article

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultNewsURL is the NewsAPI "everything" endpoint.
const DefaultNewsURL = "https://newsapi.org/v2/everything"

// Search result bounds. NewsAPI caps a page at 100 articles.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 100
)

const searchTimeout = 15 * time.Second

// ErrSearchNotConfigured is returned when no news API key is set.
var ErrSearchNotConfigured = errors.New("news search is not configured")

// Searcher finds recent articles matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Article, error)
}

// NewsAPI searches a NewsAPI-compatible endpoint for English articles,
// newest first. Each article's text is its headline and description.
type NewsAPI struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewNewsAPI returns a NewsAPI searcher. An empty baseURL means
// DefaultNewsURL and a nil client means http.DefaultClient.
func NewNewsAPI(client *http.Client, baseURL, apiKey string) *NewsAPI {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultNewsURL
	}
	return &NewsAPI{client: client, baseURL: baseURL, apiKey: apiKey}
}

type newsResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// removed marks articles NewsAPI has withdrawn but still lists.
const removed = "[Removed]"

// Search returns up to limit articles for query. limit is clamped to
// [1, MaxSearchLimit]; zero or less means DefaultSearchLimit.
func (n *NewsAPI) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	if n.apiKey == "" {
		return nil, ErrSearchNotConfigured
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	u, err := url.Parse(n.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid news url %q: %w", n.baseURL, err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching news: %w", err)
	}
	defer resp.Body.Close()

	var body newsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxFetchSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("searching news: status %d: decoding response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		msg := body.Message
		if msg == "" {
			msg = "no message"
		}
		return nil, fmt.Errorf("searching news: status %d: %s (%s)", resp.StatusCode, msg, body.Code)
	}

	out := make([]Article, 0, len(body.Articles))
	for _, it := range body.Articles {
		title := strings.TrimSpace(it.Title)
		desc := strings.TrimSpace(it.Description)
		if title == removed {
			continue
		}
		text := strings.TrimSpace(title + "\n\n" + desc)
		if text == "" {
			continue
		}
		source := it.Source.Name
		if source == "" {
			if su, err := url.Parse(it.URL); err == nil {
				source = su.Hostname()
			}
		}
		out = append(out, Article{Text: text, Source: source, Published: it.PublishedAt})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
