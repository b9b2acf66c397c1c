// Package bias maps categorical bias labels onto the ordered scale used for
// charting and trend analysis.
package bias

import (
	"fmt"
	"strings"
)

// Positions on the bias scale.
const (
	Left   = -1
	Center = 0
	Right  = 1
)

var scores = map[string]int{
	"left":   Left,
	"center": Center,
	"right":  Right,
}

var labels = map[int]string{
	Left:   "Left",
	Center: "Center",
	Right:  "Right",
}

// Score maps a label to its position on the scale, case-insensitively.
// ok is false for labels outside {left, center, right}; callers doing trend
// analysis must skip those rather than treat them as center.
func Score(label string) (score int, ok bool) {
	score, ok = scores[strings.ToLower(strings.TrimSpace(label))]
	return score, ok
}

// Value is Score for numeric contexts such as a gauge, where unknown labels
// sit at 0.
func Value(label string) int {
	score, _ := Score(label)
	return score
}

// Known reports whether label is one of the recognized categories.
func Known(label string) bool {
	_, ok := Score(label)
	return ok
}

// Label returns the canonical display label for a scale position.
func Label(score int) (string, error) {
	l, ok := labels[score]
	if !ok {
		return "", fmt.Errorf("bias score %d out of range [-1, 1]", score)
	}
	return l, nil
}

// Canonical returns the display label for a recognized label, or "" when
// the label is unknown.
func Canonical(label string) string {
	score, ok := Score(label)
	if !ok {
		return ""
	}
	return labels[score]
}
