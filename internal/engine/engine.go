// Package engine is the query orchestration core: it turns a natural-language
// question into validated, executed SQL through an explicit state machine
// with a bounded, error-informed retry loop, and describes its progress as an
// ordered event stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talkdata-labs/talkdata/internal/datasource"
	"github.com/talkdata-labs/talkdata/internal/executor"
	"github.com/talkdata-labs/talkdata/internal/extract"
	"github.com/talkdata-labs/talkdata/internal/guard"
	"github.com/talkdata-labs/talkdata/internal/llm"
	"github.com/talkdata-labs/talkdata/internal/prompt"
	"github.com/talkdata-labs/talkdata/internal/schema"
)

// state is the orchestration state machine's position. Transitions only
// happen inside run(); the states exist so the control flow reads as the
// machine it is.
type state int

const (
	statePrompting state = iota
	stateCompleting
	stateExtracting
	stateGuarding
	stateExecuting
	stateRetrying
	stateSucceeded
	stateFailed
)

// Config wires an Engine.
type Config struct {
	Sources      *datasource.Manager
	Introspector *schema.Introspector
	Completion   llm.Completion
	Executor     *executor.Executor

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// RunTimeout bounds one run's total wall-clock time across retries.
	// Zero disables the bound.
	RunTimeout time.Duration

	// CacheEntries/CacheTTL size the result cache; zero entries disables it.
	CacheEntries int
	CacheTTL     time.Duration

	Logger *slog.Logger
}

// Engine orchestrates runs. Safe for concurrent use: runs share only the
// schema cache (read-only after introspection) and the result cache.
type Engine struct {
	sources      *datasource.Manager
	introspector *schema.Introspector
	completion   llm.Completion
	exec         *executor.Executor
	cache        *resultCache
	maxRetries   int
	runTimeout   time.Duration
	logger       *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		sources:      cfg.Sources,
		introspector: cfg.Introspector,
		completion:   cfg.Completion,
		exec:         cfg.Executor,
		cache:        newResultCache(cfg.CacheEntries, cfg.CacheTTL),
		maxRetries:   cfg.MaxRetries,
		runTimeout:   cfg.RunTimeout,
		logger:       logger,
	}
}

// InvalidateCache drops all cached results. Called on datasource swap.
func (e *Engine) InvalidateCache() { e.cache.clear() }

// Stream starts a run and returns its ordered event channel. The channel is
// closed after the terminal done event. Cancelling ctx abandons the run.
func (e *Engine) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		e.run(ctx, req, func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return events
}

// Run executes a run to completion and returns the buffered result.
func (e *Engine) Run(ctx context.Context, req Request) *RunResult {
	return e.run(ctx, req, func(Event) {})
}

// run drives the state machine. emit is called in order; exactly one done
// event terminates the stream on every path.
func (e *Engine) run(ctx context.Context, req Request, emit func(Event)) *RunResult {
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	res := &RunResult{
		RunID:       uuid.NewString(),
		Status:      "error",
		Suggestions: []string{},
	}
	log := e.logger.With("run_id", res.RunID)

	emit(statusEvent("Analyzing question..."))

	if cached := e.cache.get(req.Question, req.PreviousSQL); cached != nil {
		log.Debug("cache hit")
		replay(cached, emit)
		return cached
	}

	emit(statusEvent("Loading database schema..."))
	ds, _, err := e.sources.Current()
	var desc *schema.Descriptor
	if err == nil {
		desc, err = e.introspector.Describe(ctx)
	}
	if err != nil {
		res.Error = fmt.Sprintf("failed to load database schema: %v", err)
		emit(errorEvent(res.Error))
		emit(doneEvent("error", false))
		return res
	}

	tier := req.Tier
	if !tier.Valid() {
		tier = chooseTier(req.Question)
	}
	emit(modelEvent(string(tier)))
	res.ModelUsed = string(tier)

	maxAttempts := e.maxRetries + 1
	var (
		attempts  []Attempt
		current   Attempt
		outcome   *executor.Outcome
		priorSQL  string
		priorErr  string
		attemptNo = 1
		terminal  string // set when a failure must not re-enter the loop
	)

	for st := statePrompting; ; {
		switch st {
		case statePrompting:
			if ctx.Err() != nil {
				terminal = "run cancelled"
				st = stateFailed
				continue
			}
			attemptTier := tier
			if attemptNo > 1 {
				attemptTier = llm.TierPro
				emit(modelEvent(fmt.Sprintf("pro (retry %d/%d)", attemptNo-1, e.maxRetries)))
				emit(statusEvent(fmt.Sprintf("Retry %d/%d: correcting the query...", attemptNo-1, e.maxRetries)))
				res.ModelUsed = "pro (retry)"
			}
			current = Attempt{
				Number: attemptNo,
				Tier:   attemptTier,
				Prompt: prompt.Build(prompt.Input{
					Question:    req.Question,
					Dialect:     ds.Kind(),
					Schema:      desc.Summary(),
					PreviousSQL: req.PreviousSQL,
					PriorSQL:    priorSQL,
					PriorError:  priorErr,
					Attempt:     attemptNo,
				}),
			}
			st = stateCompleting

		case stateCompleting:
			emit(statusEvent(fmt.Sprintf("Calling %s model...", current.Tier)))
			raw, err := e.completion.Complete(ctx, current.Prompt, current.Tier)
			if err != nil {
				current.Err = err.Error()
				if llm.IsFatal(err) || ctx.Err() != nil {
					terminal = current.Err
					attempts = append(attempts, current)
					st = stateFailed
					continue
				}
				priorErr = current.Err
				st = stateRetrying
				continue
			}
			current.RawCompletion = raw
			st = stateExtracting

		case stateExtracting:
			parsed := extract.Parse(current.RawCompletion)
			current.Reasoning = parsed.Reasoning
			if parsed.Reasoning != "" {
				emit(thoughtEvent(parsed.Reasoning))
			}
			if !parsed.HasSQL() {
				current.Err = "no SQL produced by the model"
				priorErr = current.Err
				st = stateRetrying
				continue
			}
			current.SQL = parsed.SQL
			emit(sqlEvent(current.SQL))
			st = stateGuarding

		case stateGuarding:
			v := guard.Check(current.SQL, desc)
			current.GuardVerdict = &v
			if !v.Allowed {
				log.Info("guard rejected statement", "attempt", attemptNo, "reason", v.Reason)
				current.Err = "query rejected: " + v.Reason
				priorSQL = current.SQL
				priorErr = v.Reason
				st = stateRetrying
				continue
			}
			st = stateExecuting

		case stateExecuting:
			emit(statusEvent("Executing SQL query..."))
			out, err := e.exec.Execute(ctx, ds, current.SQL)
			if ctx.Err() != nil {
				// The run was cancelled while the query ran; the result,
				// if any, must be discarded.
				terminal = "run cancelled"
				attempts = append(attempts, current)
				st = stateFailed
				continue
			}
			if err != nil {
				var execErr *executor.Error
				current.Err = err.Error()
				if errors.As(err, &execErr) && execErr.Kind.Retryable() {
					log.Info("execution failed, retrying", "attempt", attemptNo, "kind", execErr.Kind.String())
					priorSQL = current.SQL
					priorErr = current.Err
					st = stateRetrying
					continue
				}
				terminal = current.Err
				attempts = append(attempts, current)
				st = stateFailed
				continue
			}
			outcome = out
			st = stateSucceeded

		case stateRetrying:
			attempts = append(attempts, current)
			if attemptNo >= maxAttempts {
				st = stateFailed
				continue
			}
			attemptNo++
			st = statePrompting

		case stateFailed:
			res.attempts = attempts
			res.AttemptsUsed = len(attempts)
			if terminal != "" {
				res.Error = terminal
			} else {
				res.Error = fmt.Sprintf("query failed after %d attempts: %s", len(attempts), lastError(attempts))
			}
			res.Reasoning = lastReasoning(attempts)
			log.Info("run failed", "attempts", res.AttemptsUsed, "error", res.Error)
			emit(errorEvent(res.Error))
			emit(doneEvent("error", false))
			return res

		case stateSucceeded:
			attempts = append(attempts, current)
			res.attempts = attempts
			res.AttemptsUsed = len(attempts)
			res.Status = "success"
			res.FinalSQL = current.SQL
			res.Reasoning = current.Reasoning
			res.Columns = outcome.Columns
			res.Rows = outcome.Rows
			res.Truncated = outcome.Truncated
			emit(tableEvent(TablePayload{
				Columns:   outcome.Columns,
				Rows:      outcome.Rows,
				Truncated: outcome.Truncated,
			}))

			emit(statusEvent("Generating insights..."))
			post := e.postProcess(ctx, req, current.SQL, outcome)
			res.Suggestions = post.suggestions
			res.Summary = post.summary
			if len(post.suggestions) > 0 {
				emit(suggestionsEvent(post.suggestions))
			}
			if post.summary != "" {
				emit(summaryEvent(post.summary))
			}

			e.cache.set(req.Question, req.PreviousSQL, res)
			log.Info("run succeeded", "attempts", res.AttemptsUsed, "rows", len(res.Rows))
			emit(doneEvent("success", false))
			return res
		}
	}
}

// replay re-emits the event sequence of a cached result.
func replay(res *RunResult, emit func(Event)) {
	emit(statusEvent("Found cached result"))
	if res.ModelUsed != "" {
		emit(modelEvent(res.ModelUsed))
	}
	if res.Reasoning != "" {
		emit(thoughtEvent(res.Reasoning))
	}
	if res.FinalSQL != "" {
		emit(sqlEvent(res.FinalSQL))
	}
	if len(res.Columns) > 0 {
		emit(tableEvent(TablePayload{Columns: res.Columns, Rows: res.Rows, Truncated: res.Truncated}))
	}
	if len(res.Suggestions) > 0 {
		emit(suggestionsEvent(res.Suggestions))
	}
	if res.Summary != "" {
		emit(summaryEvent(res.Summary))
	}
	emit(doneEvent(res.Status, true))
}

func lastError(attempts []Attempt) string {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Err != "" {
			return attempts[i].Err
		}
	}
	return "unknown error"
}

func lastReasoning(attempts []Attempt) string {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Reasoning != "" {
			return attempts[i].Reasoning
		}
	}
	return ""
}
