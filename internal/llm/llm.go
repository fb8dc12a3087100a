// Package llm wraps the language-model backend behind a small Completion
// capability. The engine only ever asks for "a completion at this tier";
// model selection and transport live here.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Tier selects between the fast/cheap and the higher-quality backend.
type Tier string

const (
	// TierFlash is the fast model, used for simple questions and
	// post-processing calls.
	TierFlash Tier = "flash"

	// TierPro is the higher-quality model, used for complex questions
	// and all retries.
	TierPro Tier = "pro"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool { return t == TierFlash || t == TierPro }

// Completion is the capability the engine consumes.
type Completion interface {
	// Complete returns the raw model output for a prompt. Failures are
	// reported as *Error with a transient/fatal classification.
	Complete(ctx context.Context, prompt string, tier Tier) (string, error)
}

// Error is a completion failure. Transient failures (timeouts, rate limits,
// overload) may be retried by the orchestration loop; fatal ones (auth,
// malformed request) abort the run.
type Error struct {
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("completion failed (%s): %v", kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err is a completion error that should abort the
// run immediately, bypassing the retry budget.
func IsFatal(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && !ce.Transient
}
