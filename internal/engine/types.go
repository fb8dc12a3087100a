package engine

import (
	"github.com/talkdata-labs/talkdata/internal/guard"
	"github.com/talkdata-labs/talkdata/internal/llm"
)

// Request is one orchestration run's immutable input.
type Request struct {
	Question    string
	PreviousSQL string

	// Tier forces a model tier for the first attempt. Empty lets the
	// complexity router decide. Retries always escalate to pro.
	Tier llm.Tier
}

// Attempt records one pass through the prompt→complete→extract→guard→execute
// pipeline. The engine appends attempts as it goes and never mutates earlier
// ones, so the history doubles as a replayable trace.
type Attempt struct {
	Number        int
	Tier          llm.Tier
	Prompt        string
	RawCompletion string
	Reasoning     string
	SQL           string
	GuardVerdict  *guard.Verdict
	// Err is what failed this attempt: a completion error, "no SQL
	// produced", a guard rejection, or a classified execution error.
	Err string
}

// RunResult is the terminal state of one orchestration run.
type RunResult struct {
	RunID        string     `json:"run_id"`
	Status       string     `json:"status"` // "success" or "error"
	ModelUsed    string     `json:"model_used,omitempty"`
	FinalSQL     string     `json:"sql_code,omitempty"`
	Reasoning    string     `json:"thought_trace,omitempty"`
	Columns      []string   `json:"columns"`
	Rows         [][]string `json:"results"`
	Truncated    bool       `json:"truncated,omitempty"`
	Suggestions  []string   `json:"suggestions"`
	Summary      string     `json:"data_summary,omitempty"`
	AttemptsUsed int        `json:"attempts_used"`
	Error        string     `json:"error,omitempty"`
	Cached       bool       `json:"cached"`

	attempts []Attempt
}

// Attempts returns the recorded attempt history.
func (r *RunResult) Attempts() []Attempt { return r.attempts }
