package article

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxFetchSize caps how much of a remote document is read.
const MaxFetchSize = 5 << 20 // 5MB

const fetchTimeout = 15 * time.Second

// Fetch downloads rawURL and extracts its article text. HTML pages are
// reduced to visible text, PDFs to their plain text; other content types
// are taken as text. The article source is the URL's host.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (Article, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Article{}, fmt.Errorf("invalid url %q", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Article{}, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Article{}, fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize))
	if err != nil {
		return Article{}, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var a Article
	switch {
	case mediaType == "application/pdf":
		text, err := pdfBytes(body)
		if err != nil {
			return Article{}, err
		}
		a.Text = text
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || (mediaType == "" && looksLikeHTML(body)):
		a, err = parseHTML(bytes.NewReader(body))
		if err != nil {
			return Article{}, fmt.Errorf("parsing %s: %w", rawURL, err)
		}
	default:
		a.Text = strings.TrimSpace(string(body))
	}

	if a.Text == "" {
		return Article{}, fmt.Errorf("no text found at %s", rawURL)
	}
	a.Source = u.Hostname()
	return a, nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
