package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/narrativelens/internal/analysis"
	"github.com/kalambet/narrativelens/internal/bias"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// biasColor picks a colour for a bias label by which side of the scale it
// sits on.
func biasColor(label string) string {
	score, ok := bias.Score(label)
	switch {
	case !ok:
		return colorYellow
	case score < 0:
		return colorBlue
	case score > 0:
		return colorRed
	default:
		return colorGreen
	}
}

// writeRecord renders one verdict as an indented block. Failed records show
// the failure reason and diagnostic only.
func writeRecord(w io.Writer, n int, source string, rec analysis.Record) {
	title := fmt.Sprintf("Article %d", n)
	if source != "" {
		title += " (" + source + ")"
	}
	fmt.Fprintln(w, colorize(colorBold, title))

	if rec.Failed() {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorRed, "error:"), rec.Error)
		if rec.Details != "" {
			fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "details:"), rec.Details)
		}
		return
	}

	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "bias:"), colorize(biasColor(rec.Bias), rec.Bias))
	var emotions []string
	for _, e := range analysis.EmotionProfile(rec.Emotion) {
		if e.Count > 1 {
			emotions = append(emotions, fmt.Sprintf("%s x%d", e.Emotion, e.Count))
		} else {
			emotions = append(emotions, e.Emotion)
		}
	}
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "emotion:"), strings.Join(emotions, ", "))
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "framing:"), rec.Framing)
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "omissions:"), rec.Omissions)
	if rec.Published != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "published:"), rec.Published)
	}
}
