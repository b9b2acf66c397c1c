// Package history persists analysis records across runs and derives the
// bias-over-time series from them.
package history

import (
	"context"
	"fmt"

	"github.com/kalambet/narrativelens/internal/analysis"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is an ordered, append-only collection of records. A store whose
// backing resource does not exist yet loads as empty. Any other failure
// wraps analysis.ErrStoreUnavailable.
type Store interface {
	Load(ctx context.Context) ([]analysis.Record, error)
	// Append adds recs after the existing entries, in order, and returns
	// the new number of entries.
	Append(ctx context.Context, recs []analysis.Record) (int, error)
	Close() error
}

// Open returns the store for backend rooted at dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dataDir), nil
	case BackendSQLite:
		return OpenSQLite(dataDir)
	default:
		return nil, fmt.Errorf("unknown history backend %q (want %q or %q)", backend, BackendFile, BackendSQLite)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", analysis.ErrStoreUnavailable, op, err)
}
