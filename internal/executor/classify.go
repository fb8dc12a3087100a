package executor

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind partitions execution failures by how the engine should react.
type ErrorKind int

const (
	// KindSyntax is a malformed statement; retrying with the error fed back
	// gives the model a chance to fix it.
	KindSyntax ErrorKind = iota

	// KindSchema is an unknown table/column reported by the driver despite
	// the guard; also retryable with context.
	KindSchema

	// KindTimeout means the query exceeded its deadline. Not retried.
	KindTimeout

	// KindConnection is an unreachable or dropped connection. Not retried:
	// the same connection problem would fail again.
	KindConnection
)

// String returns the kind name used in logs and error messages.
func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindSchema:
		return "schema"
	case KindTimeout:
		return "timeout"
	default:
		return "connection"
	}
}

// Retryable reports whether a retry with the error fed back makes sense.
func (k ErrorKind) Retryable() bool {
	return k == KindSyntax || k == KindSchema
}

// Error is a classified execution failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// schemaMarkers match the unknown-identifier wording of the sqlite,
// postgres, mysql and duckdb drivers.
var schemaMarkers = []string{
	"no such table",
	"no such column",
	"unknown column",
	"unknown table",
	"does not exist",
	"not found in from clause",
	"undefined column",
	"undefined table",
}

var syntaxMarkers = []string{
	"syntax error",
	"parse error",
	"parser error",
	"incomplete input",
	"unrecognized token",
	"sql syntax",
}

var connectionMarkers = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"bad connection",
	"database is locked",
	"server closed",
	"no such host",
}

// Classify wraps a driver error with an ErrorKind. Driver errors are
// stringly-typed across backends, so classification is by message, with
// structural checks (context, net, driver sentinels) taking priority.
func Classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, driver.ErrBadConn):
		return &Error{Kind: KindConnection, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindConnection, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectionMarkers {
		if strings.Contains(msg, marker) {
			return &Error{Kind: KindConnection, Err: err}
		}
	}
	for _, marker := range schemaMarkers {
		if strings.Contains(msg, marker) {
			return &Error{Kind: KindSchema, Err: err}
		}
	}
	for _, marker := range syntaxMarkers {
		if strings.Contains(msg, marker) {
			return &Error{Kind: KindSyntax, Err: err}
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return &Error{Kind: KindTimeout, Err: err}
	}

	// Unrecognized driver errors default to syntax: retrying with the
	// message fed back is cheap and often fixes malformed SQL the markers
	// above missed.
	return &Error{Kind: KindSyntax, Err: err}
}
