package history

import (
	"sort"

	"github.com/kalambet/narrativelens/internal/analysis"
	"github.com/kalambet/narrativelens/internal/bias"
)

// SnippetLength is the number of runes of the omissions text kept per point.
const SnippetLength = 100

// TrendPoint is one dated observation on the bias scale.
type TrendPoint struct {
	Date      string `json:"date"`
	BiasScore int    `json:"bias_score"`
	BiasLabel string `json:"bias_label"`
	Snippet   string `json:"snippet"`
}

// Series derives the bias time series from recs. Records without a
// publication date or with a label off the scale are left out. Labels are
// reported in their canonical spelling. Points are ordered by Date as plain
// strings, which is chronological only when every date has the same fully
// padded format; records merged through an Aggregator do.
func Series(recs []analysis.Record) []TrendPoint {
	points := make([]TrendPoint, 0, len(recs))
	for _, r := range recs {
		if r.Failed() || r.Published == "" {
			continue
		}
		score, ok := bias.Score(r.Bias)
		if !ok {
			continue
		}
		points = append(points, TrendPoint{
			Date:      r.Published,
			BiasScore: score,
			BiasLabel: bias.Canonical(r.Bias),
			Snippet:   truncate(r.Omissions, SnippetLength),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
