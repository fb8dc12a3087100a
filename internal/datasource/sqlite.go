package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	Register("sqlite", func() DataSource { return &SQLite{} })
}

// SQLite is a file-backed or in-memory SQLite datasource using the pure-Go
// driver, so no cgo is required for the default backend.
type SQLite struct {
	db   *sql.DB
	path string
}

// Connect opens the SQLite database at cfg.Path (":memory:" for in-memory).
func (s *SQLite) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// The modernc driver opens one connection per pool slot; an in-memory
	// database vanishes if its only connection closes, so pin the pool.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying pool.
func (s *SQLite) DB() *sql.DB { return s.db }

// Kind returns the dialect name.
func (s *SQLite) Kind() string { return "sqlite" }

// Path returns the database file path, used for change watching.
func (s *SQLite) Path() string { return s.path }

var _ DataSource = (*SQLite)(nil)
