// Package datasource provides the database backends the query engine runs
// against. Backends register themselves at init time and are selected by the
// "type" field of the database configuration.
package datasource

import (
	"context"
	"database/sql"
)

// Config holds the settings for connecting to a database.
type Config struct {
	// Type specifies the backend (e.g. "sqlite", "postgres", "mysql", "duckdb").
	Type string

	// Path is the file path for file-based databases. Use ":memory:" for
	// an in-memory database.
	Path string

	// Host and Port identify network-based databases.
	Host string
	Port int

	// Database is the database name.
	Database string

	// Username and Password authenticate network connections.
	Username string
	Password string

	// Options contains additional driver-specific options.
	Options map[string]string
}

// DataSource is the capability the engine consumes: a live connection with a
// known dialect. Implementations must be safe for concurrent queries.
type DataSource interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// DB exposes the underlying pool for queries and introspection.
	DB() *sql.DB

	// Kind returns the dialect name ("sqlite", "postgres", ...).
	Kind() string
}

// CSVLoader is the optional capability of backends that can ingest a CSV
// file as a table (duckdb). The upload endpoint type-asserts for it.
type CSVLoader interface {
	LoadCSV(ctx context.Context, tableName, filePath string) error
}
