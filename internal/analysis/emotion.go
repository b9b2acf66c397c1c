package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EmotionCount is one bar of an emotion profile.
type EmotionCount struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}

// EmotionProfile splits a comma-separated emotion list into capitalized
// labels and counts repeats, keeping first-seen order. An empty list is
// reported as a single "Neutral" entry.
func EmotionProfile(emotion string) []EmotionCount {
	var profile []EmotionCount
	index := make(map[string]int)

	for _, part := range strings.Split(emotion, ",") {
		label := capitalize(strings.TrimSpace(part))
		if label == "" {
			continue
		}
		if i, ok := index[label]; ok {
			profile[i].Count++
			continue
		}
		index[label] = len(profile)
		profile = append(profile, EmotionCount{Emotion: label, Count: 1})
	}

	if len(profile) == 0 {
		return []EmotionCount{{Emotion: "Neutral", Count: 1}}
	}
	return profile
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
