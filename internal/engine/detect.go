package engine

import (
	"fmt"
	"strings"
)

// DetectConfig holds parameters for backend detection.
type DetectConfig struct {
	OllamaBaseURL string
}

// Detect returns the inference backend to use. Ollama is the only backend.
func Detect(cfg DetectConfig) (Engine, error) {
	if strings.TrimSpace(cfg.OllamaBaseURL) == "" {
		return nil, fmt.Errorf("no inference backend configured: ollama.base_url is empty")
	}
	return NewOllamaEngine(cfg.OllamaBaseURL), nil
}
