package config

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// mockKeychain maps accounts under the nlens service to secrets.
type mockKeychain map[string]string

func (m mockKeychain) Get(service, account string) (string, error) {
	if service != secretService {
		return "", fmt.Errorf("unexpected service %q", service)
	}
	v, ok := m[account]
	if !ok {
		return "", errSecretNotFound
	}
	return v, nil
}

// brokenKeychain fails every read.
type brokenKeychain struct{}

func (brokenKeychain) Get(string, string) (string, error) {
	return "", errors.New("keychain locked")
}

// mapBackend is an in-memory Backend.
type mapBackend struct {
	strs map[string]string
	ints map[string]int
}

func newMapBackend() *mapBackend {
	return &mapBackend{strs: map[string]string{}, ints: map[string]int{}}
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strs[key]
	return v, ok, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *mapBackend) SetString(key, val string) error {
	m.strs[key] = val
	return nil
}

func (m *mapBackend) SetInt(key string, val int) error {
	m.ints[key] = val
	return nil
}

func (m *mapBackend) Delete(key string) error {
	delete(m.strs, key)
	delete(m.ints, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when the backend is empty.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q, want %q", cfg.Ollama.BaseURL, "http://localhost:11434")
	}
	if cfg.Ollama.ChatModel != "llama3.1" {
		t.Errorf("Ollama.ChatModel = %q, want %q", cfg.Ollama.ChatModel, "llama3.1")
	}
	if cfg.Ollama.EmbedModel != "all-minilm" {
		t.Errorf("Ollama.EmbedModel = %q, want %q", cfg.Ollama.EmbedModel, "all-minilm")
	}
	if cfg.History.Backend != "file" {
		t.Errorf("History.Backend = %q, want %q", cfg.History.Backend, "file")
	}
	if cfg.AnalysisTimeout() != 60*time.Second {
		t.Errorf("AnalysisTimeout() = %v, want 60s", cfg.AnalysisTimeout())
	}
	if cfg.Analysis.Concurrency != 4 {
		t.Errorf("Analysis.Concurrency = %d, want 4", cfg.Analysis.Concurrency)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Server.APIToken != "" {
		t.Errorf("Server.APIToken = %q, want empty", cfg.Server.APIToken)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

// TestBackendValues verifies that values stored in the backend are read.
func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := newMapBackend()
	b.ints["server.port"] = 5000
	b.strs["ollama.chat_model"] = "mistral"
	b.strs["history.backend"] = "sqlite"
	b.strs["analysis.timeout"] = "2m"

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Ollama.ChatModel != "mistral" {
		t.Errorf("Ollama.ChatModel = %q, want %q", cfg.Ollama.ChatModel, "mistral")
	}
	if cfg.History.Backend != "sqlite" {
		t.Errorf("History.Backend = %q, want %q", cfg.History.Backend, "sqlite")
	}
	if cfg.AnalysisTimeout() != 2*time.Minute {
		t.Errorf("AnalysisTimeout() = %v, want 2m", cfg.AnalysisTimeout())
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("NLENS_SERVER_PORT", "6000")
	t.Setenv("NLENS_OLLAMA_EMBED_MODEL", "env-embed")

	b := newMapBackend()
	b.ints["server.port"] = 5000
	b.strs["ollama.embed_model"] = "file-embed"

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Ollama.EmbedModel != "env-embed" {
		t.Errorf("Ollama.EmbedModel = %q, want %q", cfg.Ollama.EmbedModel, "env-embed")
	}
}

// TestInvalidEnvIntKeepsDefault verifies a malformed integer env var is ignored.
func TestInvalidEnvIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("NLENS_ANALYSIS_CONCURRENCY", "many")

	cfg, err := loadWith(newMapBackend(), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.Concurrency != 4 {
		t.Errorf("Analysis.Concurrency = %d, want 4", cfg.Analysis.Concurrency)
	}
}

// TestTokenSources verifies the env var wins over the secret store.
func TestTokenSources(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(), mockKeychain{"api_token": "store-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.APIToken != "store-token" {
		t.Errorf("APIToken = %q, want %q", cfg.Server.APIToken, "store-token")
	}

	t.Setenv("NLENS_API_TOKEN", "env-token")
	cfg, err = loadWith(newMapBackend(), mockKeychain{"api_token": "store-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.APIToken != "env-token" {
		t.Errorf("APIToken = %q, want %q", cfg.Server.APIToken, "env-token")
	}
}

// TestSecretNotReadFromBackend verifies secrets never come from the plain config store.
func TestSecretNotReadFromBackend(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.strs["server.api_token"] = "plain"

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.APIToken != "" {
		t.Errorf("APIToken = %q, want empty", cfg.Server.APIToken)
	}
	if err := cfg.RequireToken(); err == nil || !strings.Contains(err.Error(), "NLENS_API_TOKEN") {
		t.Errorf("RequireToken() = %v, want error naming NLENS_API_TOKEN", err)
	}
}

// TestValidation verifies out-of-range values are rejected at load.
func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		set  func(b *mapBackend)
		want string
	}{
		{"backend", func(b *mapBackend) { b.strs["history.backend"] = "postgres" }, "history.backend"},
		{"log level", func(b *mapBackend) { b.strs["log.level"] = "loud" }, "log.level"},
		{"timeout", func(b *mapBackend) { b.strs["analysis.timeout"] = "soon" }, "analysis.timeout"},
		{"concurrency", func(b *mapBackend) { b.ints["analysis.concurrency"] = 0 }, "analysis.concurrency"},
		{"news limit", func(b *mapBackend) { b.ints["news.limit"] = 500 }, "news.limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			b := newMapBackend()
			tt.set(b)
			_, err := loadWith(b, mockKeychain{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	b := newMapBackend()

	if err := setKey(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKey(server.port): %v", err)
	}
	if b.ints["server.port"] != 4200 {
		t.Errorf("server.port = %d, want 4200", b.ints["server.port"])
	}
	if err := setKey(b, "history.backend", "sqlite"); err != nil {
		t.Fatalf("setKey(history.backend): %v", err)
	}
	if b.strs["history.backend"] != "sqlite" {
		t.Errorf("history.backend = %q, want sqlite", b.strs["history.backend"])
	}

	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "history.backend", "redis"); err == nil {
		t.Error("expected error for unknown backend")
	}
	if err := setKey(b, "server.api_token", "x"); err == nil || !strings.Contains(err.Error(), "NLENS_API_TOKEN") {
		t.Errorf("setKey(secret) = %v, want error naming env var", err)
	}
	if err := setKey(b, "news.api_key", "x"); err == nil || !strings.Contains(err.Error(), "news_api_key") {
		t.Errorf("setKey(news.api_key) = %v, want error naming the secret store account", err)
	}
	if _, ok := b.strs["news.api_key"]; ok {
		t.Error("secret written to the plain backend")
	}
	if err := setKey(b, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.APIToken = "hidden"
	for _, ki := range ShowAll(cfg) {
		if ki.Key == "server.api_token" || ki.Value == "hidden" {
			t.Errorf("ShowAll exposed secret: %+v", ki)
		}
	}
	cfg.News.APIKey = "also-hidden"
	for _, ki := range ShowAll(cfg) {
		if ki.Key == "news.api_key" || ki.Value == "also-hidden" {
			t.Errorf("ShowAll exposed secret: %+v", ki)
		}
	}
	for _, k := range ValidKeys() {
		if k == "server.api_token" || k == "news.api_key" {
			t.Errorf("ValidKeys() lists secret %q", k)
		}
	}
	if len(ValidKeys()) != len(specs)-2 {
		t.Errorf("ValidKeys() = %d keys, want %d", len(ValidKeys()), len(specs)-2)
	}
}

// TestNewsSettings verifies the news search keys load from every layer.
func TestNewsSettings(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.News.BaseURL != "https://newsapi.org/v2/everything" || cfg.News.Limit != 5 {
		t.Errorf("News defaults = %+v", cfg.News)
	}
	if err := cfg.RequireNewsKey(); err == nil || !strings.Contains(err.Error(), "NLENS_NEWS_API_KEY") {
		t.Errorf("RequireNewsKey() = %v, want error naming NLENS_NEWS_API_KEY", err)
	}

	b := newMapBackend()
	b.strs["news.base_url"] = "http://news.local/v2/everything"
	b.ints["news.limit"] = 20
	cfg, err = loadWith(b, mockKeychain{"news_api_key": "stored-key", "api_token": "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.News.BaseURL != "http://news.local/v2/everything" || cfg.News.Limit != 20 {
		t.Errorf("News from backend = %+v", cfg.News)
	}
	if cfg.News.APIKey != "stored-key" || cfg.Server.APIToken != "tok" {
		t.Errorf("secrets = %q, %q; want each read from its own account", cfg.News.APIKey, cfg.Server.APIToken)
	}
	if err := cfg.RequireNewsKey(); err != nil {
		t.Errorf("RequireNewsKey() = %v", err)
	}

	t.Setenv("NLENS_NEWS_API_KEY", "env-key")
	cfg, err = loadWith(newMapBackend(), mockKeychain{"news_api_key": "stored-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.News.APIKey != "env-key" {
		t.Errorf("News.APIKey = %q, want env-key", cfg.News.APIKey)
	}
}

// TestBrokenKeychainIsNotFatal verifies a failing secret store only leaves
// the secrets empty.
func TestBrokenKeychainIsNotFatal(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(), brokenKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.APIToken != "" || cfg.News.APIKey != "" {
		t.Errorf("secrets = %q, %q; want empty", cfg.Server.APIToken, cfg.News.APIKey)
	}
}
