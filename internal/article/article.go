// Package article turns pasted text, local files and web pages into the
// article texts that get analyzed.
package article

import (
	"bufio"
	"strings"
)

// Separator is the line that divides articles in multi-article input.
const Separator = "---"

// Article is one text to analyze plus what is known about where it came from.
type Article struct {
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`
}

// Split breaks input into articles at lines consisting only of "---".
// Surrounding whitespace is trimmed and empty pieces are dropped.
func Split(input string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == Separator {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return out
}

// FromTexts wraps plain texts as articles with no provenance.
func FromTexts(texts []string) []Article {
	out := make([]Article, len(texts))
	for i, t := range texts {
		out[i] = Article{Text: t}
	}
	return out
}

// Texts returns the text of every article, in order.
func Texts(articles []Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Text
	}
	return out
}
