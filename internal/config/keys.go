package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string
	allowed []string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NLENS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "NLENS_API_TOKEN",
		secret: true, account: "api_token",
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "ollama.base_url", typ: kString, env: "NLENS_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "NLENS_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "NLENS_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NLENS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "history.backend", typ: kString, env: "NLENS_HISTORY_BACKEND",
		allowed: []string{"file", "sqlite"},
		apply:   func(cfg *Config, v any) { cfg.History.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.History.Backend },
	},
	{
		key: "analysis.prompt_file", typ: kString, env: "NLENS_ANALYSIS_PROMPT_FILE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.PromptFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.PromptFile },
	},
	{
		key: "analysis.timeout", typ: kString, env: "NLENS_ANALYSIS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.Timeout },
	},
	{
		key: "analysis.concurrency", typ: kInt, env: "NLENS_ANALYSIS_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.Concurrency },
	},
	{
		key: "news.api_key", typ: kString, env: "NLENS_NEWS_API_KEY",
		secret: true, account: "news_api_key",
		apply:   func(cfg *Config, v any) { cfg.News.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.News.APIKey },
	},
	{
		key: "news.base_url", typ: kString, env: "NLENS_NEWS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.News.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.News.BaseURL },
	},
	{
		key: "news.limit", typ: kInt, env: "NLENS_NEWS_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.News.Limit = v.(int) },
		extract: func(cfg Config) any { return cfg.News.Limit },
	},
	{
		key: "log.level", typ: kString, env: "NLENS_LOG_LEVEL",
		allowed: []string{"debug", "info", "warn", "error"},
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer from env var, using default", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}

// applySecrets fills every secret the environment left empty from the
// secret store. A missing entry is not an error; the command that needs the
// secret reports it.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		v, err := kc.Get(secretService, s.account)
		if err != nil {
			if !errors.Is(err, errSecretNotFound) {
				slog.Warn("could not read secret store", "key", s.key, "error", err)
			}
			continue
		}
		if v != "" {
			s.apply(cfg, v)
		}
	}
}

func specFor(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}
