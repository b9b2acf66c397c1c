package article

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Load reads the article text stored at path. PDF and HTML files are
// reduced to their text; anything else is read as plain text.
func Load(path string) (Article, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := pdfText(path)
		if err != nil {
			return Article{}, err
		}
		return Article{Text: text, Source: filepath.Base(path)}, nil
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return Article{}, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		a, err := parseHTML(f)
		if err != nil {
			return Article{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		a.Source = filepath.Base(path)
		return a, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Article{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return Article{Text: strings.TrimSpace(string(data)), Source: filepath.Base(path)}, nil
	}
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()
	return readPDF(r)
}

func pdfBytes(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	return readPDF(r)
}

func readPDF(r *pdf.Reader) (string, error) {
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Title:    true,
	atom.Nav:      true,
	atom.Footer:   true,
}

// block elements start a new line of text.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Article: true, atom.Section: true, atom.Blockquote: true, atom.Tr: true,
}

// publishedMeta lists the meta tags that carry a publication time.
var publishedMeta = []string{"article:published_time", "og:published_time", "pubdate", "date"}

// parseHTML extracts the visible text of a page and, when the page
// declares one, its publication time.
func parseHTML(r io.Reader) (Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Article{}, err
	}

	var (
		sb   strings.Builder
		meta = map[string]string{}
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Meta {
				collectMeta(n, meta)
			}
			if skipped[n.DataAtom] {
				return
			}
			if block[n.DataAtom] {
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	a := Article{Text: tidy(sb.String())}
	for _, key := range publishedMeta {
		if v := meta[key]; v != "" {
			a.Published = v
			break
		}
	}
	return a, nil
}

// collectMeta records <meta> name/property → content pairs.
func collectMeta(n *html.Node, into map[string]string) {
	var key, content string
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "name", "property", "itemprop":
			key = strings.ToLower(attr.Val)
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	if key != "" && content != "" {
		into[key] = content
	}
}

// tidy trims every line and drops blank ones.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
