//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultsDomain is the UserDefaults domain that `nlens config set` writes
// to; `defaults read com.kalambet.nlens` shows what is stored.
const defaultsDomain = "com.kalambet.nlens"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nlens-data"
	}
	return filepath.Join(home, "Library", "Application Support", "nlens")
}

func secretHint(account string) string {
	return fmt.Sprintf(", or store it with `security add-generic-password -s %s -a %s -w`", secretService, account)
}

// defaultsBackend shells out to the `defaults` tool. A missing key makes
// `defaults` exit with status 1, which reads as "not set".
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() Backend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) run(args ...string) (string, bool, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	text := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return text, true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("defaults %s %s: %w (%s)", args[0], b.domain, err, text)
	}
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	return b.run("read", b.domain, key)
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.run("read", b.domain, key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s holds %q, not an integer", key, s)
	}
	return n, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	_, _, err := b.run("write", b.domain, key, "-string", val)
	return err
}

func (b defaultsBackend) SetInt(key string, val int) error {
	_, _, err := b.run("write", b.domain, key, "-int", strconv.Itoa(val))
	return err
}

// Delete is a no-op for keys that were never set.
func (b defaultsBackend) Delete(key string) error {
	_, _, err := b.run("delete", b.domain, key)
	return err
}
