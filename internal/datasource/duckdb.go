package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func() DataSource { return &DuckDB{} })
}

// DuckDB is an analytical datasource, useful for querying uploaded CSV data.
type DuckDB struct {
	db   *sql.DB
	path string
}

// Connect opens the DuckDB database at cfg.Path (":memory:" for in-memory).
func (d *DuckDB) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	d.db = db
	d.path = cfg.Path
	return nil
}

// LoadCSV creates or replaces a table from a CSV file with inferred schema.
// Used by the upload path; the table name is sanitized before interpolation.
func (d *DuckDB) LoadCSV(ctx context.Context, tableName, filePath string) error {
	if d.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if !validTableName(tableName) {
		return fmt.Errorf("invalid table name %q", tableName)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to resolve csv path: %w", err)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		tableName,
		strings.ReplaceAll(absPath, "'", "''"),
	)

	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Close closes the database.
func (d *DuckDB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// DB returns the underlying pool.
func (d *DuckDB) DB() *sql.DB { return d.db }

// Kind returns the dialect name.
func (d *DuckDB) Kind() string { return "duckdb" }

// Path returns the database file path, used for change watching.
func (d *DuckDB) Path() string { return d.path }

var (
	_ DataSource = (*DuckDB)(nil)
	_ CSVLoader  = (*DuckDB)(nil)
)
