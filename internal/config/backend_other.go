//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "nlens-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "nlens")
}

func secretHint(account string) string {
	return fmt.Sprintf(", or add %q under %q in %s", account, secretService, secretsFilePath())
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "nlens", "config.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "nlens", "config.json")
}

// jsonBackend keeps the settings as one flat JSON object keyed by the
// dotted config key. Every write rewrites the whole file.
type jsonBackend struct {
	path   string
	values map[string]any
}

func newPlatformBackend() Backend {
	return openJSONBackend(configFilePath())
}

// openJSONBackend never fails: an unreadable or corrupt file is logged and
// treated as empty so the defaults apply.
func openJSONBackend(path string) *jsonBackend {
	b := &jsonBackend{path: path, values: map[string]any{}}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &b.values); err != nil {
			slog.Warn("config file is not valid JSON, using defaults", "path", path, "error", err)
			b.values = map[string]any{}
		}
	}
	return b
}

// flush writes the settings to a temp file beside the target and renames it
// over the target.
func (b *jsonBackend) flush() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *jsonBackend) GetString(key string) (string, bool, error) {
	switch v := b.values[key].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (b *jsonBackend) GetInt(key string) (int, bool, error) {
	switch v := b.values[key].(type) {
	case nil:
		return 0, false, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt || v > math.MaxInt {
			return 0, true, fmt.Errorf("%s holds %v, not an integer", key, v)
		}
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("%s holds %q, not an integer", key, v)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%s holds a %T, not an integer", key, v)
	}
}

func (b *jsonBackend) SetString(key, val string) error {
	b.values[key] = val
	return b.flush()
}

func (b *jsonBackend) SetInt(key string, val int) error {
	b.values[key] = val
	return b.flush()
}

func (b *jsonBackend) Delete(key string) error {
	if _, ok := b.values[key]; !ok {
		return nil
	}
	delete(b.values, key)
	return b.flush()
}
