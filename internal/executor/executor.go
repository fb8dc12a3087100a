// Package executor runs guard-approved SQL against the active datasource,
// normalizes the result, and classifies failures so the engine knows which
// ones a retry can fix.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/talkdata-labs/talkdata/internal/datasource"
)

// Outcome is a successful execution: ordered columns and stringified rows.
// Truncated means the row cap was hit and the result may be partial.
type Outcome struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// Executor executes validated read-only SQL with a row cap and per-query
// timeout.
type Executor struct {
	rowLimit int
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an executor. rowLimit must be positive; timeout of zero
// disables the per-query bound (the engine's run timeout still applies).
func New(rowLimit int, timeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{rowLimit: rowLimit, timeout: timeout, logger: logger}
}

// Execute runs sqlText and collects up to the row cap. The caller must have
// passed the statement through the guard already; this layer adds a
// read-only transaction where the driver supports one, as a second fence,
// not the primary one.
func (e *Executor) Execute(ctx context.Context, ds datasource.DataSource, sqlText string) (*Outcome, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, cleanup, err := e.query(ctx, ds, sqlText)
	if err != nil {
		return nil, Classify(err)
	}
	defer cleanup()

	outcome, err := e.collect(rows)
	if err != nil {
		return nil, Classify(err)
	}

	e.logger.Debug("query executed", "rows", len(outcome.Rows), "truncated", outcome.Truncated)
	return outcome, nil
}

// query prefers a read-only transaction; drivers that do not support the
// option fall back to a plain query on the pool.
func (e *Executor) query(ctx context.Context, ds datasource.DataSource, sqlText string) (*sql.Rows, func(), error) {
	db := ds.DB()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		rows, qerr := db.QueryContext(ctx, sqlText)
		if qerr != nil {
			return nil, nil, qerr
		}
		return rows, func() { _ = rows.Close() }, nil
	}

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, err
	}
	return rows, func() {
		_ = rows.Close()
		_ = tx.Rollback() // read-only: always roll back
	}, nil
}

func (e *Executor) collect(rows *sql.Rows) (*Outcome, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &Outcome{Columns: cols}
	for rows.Next() {
		if len(out.Rows) >= e.rowLimit {
			out.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// formatValue renders a scanned value for the table payload. Floats round to
// two decimals; byte slices are assumed to be text.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case time.Time:
		return val.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatFloat(f float64) string {
	rounded := math.Round(f*100) / 100
	if rounded == math.Trunc(rounded) {
		return strconv.FormatFloat(rounded, 'f', -1, 64)
	}
	return strconv.FormatFloat(rounded, 'f', 2, 64)
}
