package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kalambet/narrativelens/internal/analysis"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBName is the SQLite database file inside the data directory.
const DBName = "history.db"

// SQLiteStore is an insert-only log of records. Existing rows are never
// rewritten; load order is insertion order.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the history database in dataDir and runs
// pending migrations. Pass ":memory:" for an in-memory database.
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, unavailable("creating data directory", err)
		}
		dsn = filepath.Join(dataDir, DBName)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("opening database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("pinging database", err)
	}

	// One connection: the in-memory database lives per connection, and a
	// single writer avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, unavailable("setting busy timeout", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable("setting journal mode", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, unavailable("running migrations", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]analysis.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bias, emotion, framing, omissions, source, published, error, details
		FROM history ORDER BY seq ASC`)
	if err != nil {
		return nil, unavailable("querying history", err)
	}
	defer rows.Close()

	var recs []analysis.Record
	for rows.Next() {
		var r analysis.Record
		if err := rows.Scan(&r.ID, &r.Bias, &r.Emotion, &r.Framing, &r.Omissions, &r.Source, &r.Published, &r.Error, &r.Details); err != nil {
			return nil, unavailable("scanning history", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating history", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Append(ctx context.Context, recs []analysis.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("beginning append", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (id, bias, emotion, framing, omissions, source, published, error, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, unavailable("preparing append", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Bias, r.Emotion, r.Framing, r.Omissions, r.Source, r.Published, r.Error, r.Details); err != nil {
			return 0, unavailable("inserting record", err)
		}
	}

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&total); err != nil {
		return 0, unavailable("counting history", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("committing append", err)
	}
	return total, nil
}
