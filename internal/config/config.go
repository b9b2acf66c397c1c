package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	History  HistoryConfig
	Analysis AnalysisConfig
	News     NewsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type HistoryConfig struct {
	Backend string
}

type AnalysisConfig struct {
	PromptFile  string
	Timeout     string
	Concurrency int
}

// NewsConfig points the `--query` search at a NewsAPI-compatible endpoint.
type NewsConfig struct {
	APIKey  string
	BaseURL string
	Limit   int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "all-minilm",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		History: HistoryConfig{
			Backend: "file",
		},
		Analysis: AnalysisConfig{
			Timeout:     "60s",
			Concurrency: 4,
		},
		News: NewsConfig{
			BaseURL: "https://newsapi.org/v2/everything",
			Limit:   5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.kalambet.nlens) and
// secrets fall back to the login keychain under service "nlens".
// Elsewhere the backend is a JSON file at $XDG_CONFIG_HOME/nlens/config.json
// and secrets fall back to $XDG_DATA_HOME/nlens/secrets.json.
//
// Environment variables (NLENS_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for _, s := range specs {
		if len(s.allowed) == 0 {
			continue
		}
		v := fmt.Sprintf("%v", s.extract(c))
		if !contains(s.allowed, v) {
			return fmt.Errorf("invalid value %q for %s (want one of %s)", v, s.key, strings.Join(s.allowed, ", "))
		}
	}
	if _, err := time.ParseDuration(c.Analysis.Timeout); err != nil {
		return fmt.Errorf("invalid analysis.timeout %q: %w", c.Analysis.Timeout, err)
	}
	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("analysis.concurrency must be at least 1, got %d", c.Analysis.Concurrency)
	}
	if c.News.Limit < 1 || c.News.Limit > 100 {
		return fmt.Errorf("news.limit must be between 1 and 100, got %d", c.News.Limit)
	}
	return nil
}

// AnalysisTimeout returns the per-article model call timeout.
func (c Config) AnalysisTimeout() time.Duration {
	d, err := time.ParseDuration(c.Analysis.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// RequireToken returns an error naming where the API token can be provided
// when none was found.
func (c Config) RequireToken() error {
	return c.requireSecret("server.api_token", "API token")
}

// RequireNewsKey is RequireToken for the news search key.
func (c Config) RequireNewsKey() error {
	return c.requireSecret("news.api_key", "news API key")
}

func (c Config) requireSecret(key, what string) error {
	s, _ := specFor(key)
	if s.extract(c) != "" {
		return nil
	}
	return fmt.Errorf("missing required config: %s. Set environment variable %s%s", what, s.env, secretHint(s.account))
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
