package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/talkdata-labs/talkdata/internal/datasource"
)

// sampleRowCount is how many example rows per table go into the prompt.
const sampleRowCount = 2

// sampleValueMax truncates long string values in sample rows.
const sampleValueMax = 30

// IntrospectionError indicates the catalog query failed, usually because the
// connection is unreachable or the backend is unsupported.
type IntrospectionError struct {
	Kind string // datasource kind
	Err  error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("schema introspection failed for %s: %v", e.Kind, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// Introspector memoizes schema descriptors per datasource generation. A
// datasource swap bumps the generation, which drops the cached descriptor on
// the next Describe call. The cached descriptor itself is immutable and safe
// to share across runs.
type Introspector struct {
	sources *datasource.Manager
	logger  *slog.Logger

	mu        sync.Mutex
	cached    *Descriptor
	cachedGen uint64
}

// NewIntrospector creates an introspector bound to a datasource manager.
func NewIntrospector(sources *datasource.Manager, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{sources: sources, logger: logger}
}

// Describe returns the schema descriptor for the current datasource,
// introspecting at most once per generation.
func (in *Introspector) Describe(ctx context.Context) (*Descriptor, error) {
	ds, gen, err := in.sources.Current()
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	if in.cached != nil && in.cachedGen == gen {
		d := in.cached
		in.mu.Unlock()
		return d, nil
	}
	in.mu.Unlock()

	d, err := Describe(ctx, ds)
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	// A swap may have raced introspection; only cache if the generation
	// still matches, but return the captured descriptor either way.
	if in.sources.Generation() == gen {
		in.cached = d
		in.cachedGen = gen
	}
	in.mu.Unlock()

	in.logger.Debug("schema introspected", "tables", len(d.Tables), "generation", gen)
	return d, nil
}

// Describe extracts table and column metadata from a datasource without
// caching. Only read-only catalog queries are issued.
func Describe(ctx context.Context, ds datasource.DataSource) (*Descriptor, error) {
	var (
		tables []Table
		err    error
	)
	switch ds.Kind() {
	case "sqlite":
		tables, err = describeSQLite(ctx, ds.DB())
	default:
		// postgres, mysql and duckdb all expose information_schema.
		tables, err = describeInformationSchema(ctx, ds.DB(), ds.Kind())
	}
	if err != nil {
		return nil, &IntrospectionError{Kind: ds.Kind(), Err: err}
	}

	for i := range tables {
		rows, sampleErr := sampleRows(ctx, ds.DB(), tables[i].Name, len(tables[i].Columns))
		if sampleErr != nil {
			// Sample data is a prompt nicety, not a requirement.
			continue
		}
		tables[i].SampleRows = rows
	}

	return NewDescriptor(tables), nil
}

func describeSQLite(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	// pragma_table_info is the table-valued form, usable in a plain SELECT.
	rows, err := db.QueryContext(ctx,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func describeInformationSchema(ctx context.Context, db *sql.DB, kind string) ([]Table, error) {
	query := `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = ` + defaultSchemaExpr(kind) + `
		ORDER BY table_name, ordinal_position`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query information_schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		tables  []Table
		current *Table
	)
	for rows.Next() {
		var tableName string
		var col Column
		if err := rows.Scan(&tableName, &col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		if current == nil || current.Name != tableName {
			tables = append(tables, Table{Name: tableName})
			current = &tables[len(tables)-1]
		}
		current.Columns = append(current.Columns, col)
	}
	return tables, rows.Err()
}

func defaultSchemaExpr(kind string) string {
	switch kind {
	case "postgres":
		return "'public'"
	case "mysql":
		return "DATABASE()"
	default: // duckdb
		return "'main'"
	}
}

func sampleRows(ctx context.Context, db *sql.DB, table string, nCols int) ([]string, error) {
	// Table names come from the catalog, not from user input.
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRowCount))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		values := make([]any, nCols)
		ptrs := make([]any, nCols)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		formatted := make([]string, nCols)
		for i, v := range values {
			formatted[i] = formatSampleValue(v)
		}
		out = append(out, strings.Join(formatted, ", "))
	}
	return out, rows.Err()
}

func formatSampleValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return quoteSample(string(val))
	case string:
		return quoteSample(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func quoteSample(s string) string {
	if len(s) > sampleValueMax {
		return "'" + s[:sampleValueMax] + "...'"
	}
	return "'" + s + "'"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
