package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kalambet/narrativelens/internal/analysis"
)

// FileName is the history document inside the data directory.
const FileName = "history.json"

// FileStore keeps the whole history as one JSON array. Appends rewrite the
// document under an exclusive lock on a sibling ".lock" file and replace it
// with an atomic rename, so readers see either the old or the new content
// and concurrent writers in separate processes do not lose entries.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by <dataDir>/history.json. Nothing is
// created until the first Append.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{path: filepath.Join(dataDir, FileName)}
}

// Path returns the location of the history document.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) ([]analysis.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

func (s *FileStore) Append(ctx context.Context, recs []analysis.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, unavailable("creating data directory", err)
	}

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return 0, unavailable("locking history", err)
	}
	defer unlock()

	existing, err := s.read()
	if err != nil {
		return 0, err
	}
	all := append(existing, recs...)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return 0, unavailable("encoding history", err)
	}
	if err := writeAtomic(dir, s.path, data); err != nil {
		return 0, unavailable("writing history", err)
	}
	return len(all), nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() ([]analysis.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("reading history", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var recs []analysis.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, unavailable("decoding "+s.path, err)
	}
	return recs, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}
