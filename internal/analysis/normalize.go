package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	fence          = "```"
	parseFailedMsg = "Failed to parse response"
)

// field describes how one record field is resolved from the decoded
// document: candidate keys are tried in order and the first present,
// non-empty value wins.
type field struct {
	keys     []string
	fallback string
	sep      string // joins array values
	set      func(r *Record, v string)
}

var fields = []field{
	{
		keys: []string{"bias", "Political Bias"}, fallback: DefaultBias, sep: ", ",
		set: func(r *Record, v string) { r.Bias = v },
	},
	{
		keys: []string{"emotion", "Emotional Tone"}, fallback: DefaultEmotion, sep: ", ",
		set: func(r *Record, v string) { r.Emotion = v },
	},
	{
		keys: []string{"framing", "Framing Style"}, fallback: DefaultFraming, sep: ", ",
		set: func(r *Record, v string) { r.Framing = v },
	},
	{
		keys: []string{"omissions", "Omitted Viewpoints"}, fallback: DefaultOmissions, sep: "\n",
		set: func(r *Record, v string) { r.Omissions = v },
	},
	{
		keys: []string{"source", "Predicted Source"}, sep: ", ",
		set: func(r *Record, v string) { r.Source = v },
	},
}

// Normalize turns one raw model response into a Record. It never fails: a
// response that cannot be decoded into a key/value document yields an error
// record carrying the diagnostic.
func Normalize(raw string) Record {
	doc, err := decodeDocument(raw)
	if err != nil {
		return failure(parseFailedMsg, err)
	}

	var r Record
	for _, f := range fields {
		v, ok := resolve(doc, f.keys, f.sep)
		if !ok {
			v = f.fallback
		}
		f.set(&r, v)
	}
	return r
}

func decodeDocument(raw string) (map[string]any, error) {
	cleaned := StripFence(raw)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", kindOf(v))
	}
	return doc, nil
}

// StripFence removes surrounding whitespace, a markdown code fence and a
// leading language tag such as "json".
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		// The rest of the opening line is a language tag when it is a
		// single bare token.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			tag := strings.TrimSpace(s[:nl])
			if isLanguageTag(tag) {
				s = s[nl+1:]
			}
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	s = strings.TrimSpace(s)

	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		rest := strings.TrimLeft(s[4:], " \t\r\n")
		if strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "[") {
			s = rest
		}
	}
	return s
}

func isLanguageTag(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t{}[]\"") {
		return false
	}
	return true
}

func resolve(doc map[string]any, keys []string, sep string) (string, bool) {
	for _, k := range keys {
		v, present := doc[k]
		if !present {
			continue
		}
		if s, ok := render(v, sep); ok {
			return s, true
		}
	}
	return "", false
}

// render converts a decoded JSON value to text. Falsy values (empty string,
// empty array, false, zero, null) report ok=false so the caller moves on to
// the next candidate key.
func render(v any, sep string) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return val, true
	case bool:
		if !val {
			return "", false
		}
		return "true", true
	case float64:
		if val == 0 {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := render(item, sep); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, sep), true
	case map[string]any:
		if len(val) == 0 {
			return "", false
		}
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
