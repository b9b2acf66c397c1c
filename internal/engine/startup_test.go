package engine

import (
	"context"
	"io"
	"strings"
	"testing"
)

type mockEngine struct {
	isRunning bool
	models    map[string]bool
	pulled    []string
}

func (m *mockEngine) Chat(_ context.Context, _ string, _ []Message, _ *Schema) (string, error) {
	return "", nil
}
func (m *mockEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, nil
}
func (m *mockEngine) Unload(_ context.Context, _ string) error       { return nil }
func (m *mockEngine) IsRunning(_ context.Context) bool               { return m.isRunning }
func (m *mockEngine) HasModel(_ context.Context, name string) bool   { return m.models[name] }
func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"llama3.2": true, "all-minilm": true}}
	if err := EnsureReady(context.Background(), m, "llama3.2", "all-minilm", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"llama3.2": true}}
	if err := EnsureReady(context.Background(), m, "llama3.2", "all-minilm", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "all-minilm" {
		t.Errorf("expected pull of all-minilm, got %v", m.pulled)
	}
}

func TestEnsureReady_SkipsEmptyAndDuplicate(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}}
	if err := EnsureReady(context.Background(), m, "", "all-minilm", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if err := EnsureReady(context.Background(), m, "same", "same", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if strings.Join(m.pulled, ",") != "all-minilm,same" {
		t.Errorf("pulled = %v", m.pulled)
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{models: map[string]bool{}}
	err := EnsureReady(context.Background(), m, "llama3.2", "all-minilm", io.Discard)
	if err == nil {
		t.Fatal("expected error when engine is down")
	}
	if !strings.Contains(err.Error(), "not running") {
		t.Errorf("error = %q", err)
	}
}
