//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// secretsFilePath is the JSON file standing in for a keychain, laid out as
// {"<service>": {"<account>": "<secret>"}}.
func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "nlens", "secrets.json")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "nlens", "secrets.json")
}

func keychainGet(service, account string) ([]byte, error) {
	return readSecret(secretsFilePath(), service, account)
}

func readSecret(path, service, account string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, errSecretNotFound
	}
	return []byte(val), nil
}
