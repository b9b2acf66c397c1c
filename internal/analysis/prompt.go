package analysis

import (
	"fmt"
	"os"
	"strings"

	"github.com/kalambet/narrativelens/internal/engine"
)

const articlePlaceholder = "{article}"

const defaultTemplate = `You are a media analysis engine. Read the article below and respond with ONLY a single JSON object with the keys "bias", "emotion", "framing" and "omissions". Do not include any other text.

- bias: one of "left", "center", "right".
- emotion: comma-separated list of the dominant emotional tones.
- framing: a short label for the framing style.
- omissions: perspectives or facts the article leaves out.

Article:
{article}`

// LoadTemplate reads a prompt template from path. An empty path selects the
// built-in template.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	tmpl := string(data)
	if !strings.Contains(tmpl, articlePlaceholder) {
		return "", fmt.Errorf("prompt template %s has no %s placeholder", path, articlePlaceholder)
	}
	return tmpl, nil
}

// BuildPrompt constructs the chat messages for one article.
func BuildPrompt(template, article string) []engine.Message {
	if template == "" {
		template = defaultTemplate
	}
	return []engine.Message{
		{Role: "user", Content: strings.ReplaceAll(template, articlePlaceholder, article)},
	}
}
