//go:build !darwin

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestJSONBackendRoundTrip verifies values written by the file backend are
// read back after reopening.
func TestJSONBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nlens", "config.json")

	b := openJSONBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("ollama.chat_model", "qwen2.5"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	b2 := openJSONBackend(path)
	port, ok, err := b2.GetInt("server.port")
	if err != nil || !ok || port != 4300 {
		t.Errorf("GetInt(server.port) = %d, %v, %v; want 4300, true, nil", port, ok, err)
	}
	model, ok, err := b2.GetString("ollama.chat_model")
	if err != nil || !ok || model != "qwen2.5" {
		t.Errorf("GetString(ollama.chat_model) = %q, %v, %v", model, ok, err)
	}

	if err := b2.Delete("never.set"); err != nil {
		t.Fatalf("Delete of a missing key: %v", err)
	}
	if err := b2.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := openJSONBackend(path).GetInt("server.port"); ok {
		t.Error("server.port still present after Delete")
	}
}

// TestJSONBackendBadJSON verifies a corrupt file falls back to defaults.
func TestJSONBackendBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openJSONBackend(path)
	if _, ok, _ := b.GetString("log.level"); ok {
		t.Error("expected no values from a corrupt file")
	}
}

// TestJSONBackendRejectsFractionalInt verifies non-integer numbers are errors.
func TestJSONBackendRejectsFractionalInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 40.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := openJSONBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for fractional port")
	}
}

// TestJSONBackendLeavesNoTempFiles verifies writes replace the file in place.
func TestJSONBackendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b := openJSONBackend(filepath.Join(dir, "config.json"))
	for i := 0; i < 3; i++ {
		if err := b.SetInt("news.limit", 10+i); err != nil {
			t.Fatalf("SetInt: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.json" {
		t.Errorf("dir holds %v, want only config.json", entries)
	}
}

func TestReadSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")

	if _, err := readSecret(path, "nlens", "api_token"); !errors.Is(err, errSecretNotFound) {
		t.Errorf("absent file: err = %v, want errSecretNotFound", err)
	}

	if err := os.WriteFile(path, []byte(`{"nlens": {"api_token": "tok", "news_api_key": "nk"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := readSecret(path, "nlens", "news_api_key")
	if err != nil || string(got) != "nk" {
		t.Errorf("readSecret = %q, %v; want nk", got, err)
	}
	if _, err := readSecret(path, "other", "api_token"); !errors.Is(err, errSecretNotFound) {
		t.Errorf("unknown service: err = %v, want errSecretNotFound", err)
	}
	if _, err := readSecret(path, "nlens", "missing"); !errors.Is(err, errSecretNotFound) {
		t.Errorf("unknown account: err = %v, want errSecretNotFound", err)
	}

	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readSecret(path, "nlens", "api_token"); err == nil || errors.Is(err, errSecretNotFound) {
		t.Errorf("corrupt file: err = %v, want a parse error", err)
	}
}
