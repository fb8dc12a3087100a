package engine

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talkdata-labs/talkdata/internal/executor"
	"github.com/talkdata-labs/talkdata/internal/llm"
	"github.com/talkdata-labs/talkdata/internal/prompt"
)

// postProcessTimeout bounds the insight fan-out so a slow model call never
// holds a finished run open.
const postProcessTimeout = 15 * time.Second

// sampleRowLimit is how many result rows the insight prompts may see.
const sampleRowLimit = 5

type postResult struct {
	suggestions []string
	summary     string
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// postProcess runs the insight calls concurrently: follow-up suggestions
// always, and a one-sentence summary only when the question turns out to be
// a follow-up refining a previous query. Every call is best effort; a
// failure leaves its field empty and is never surfaced to the run.
func (e *Engine) postProcess(ctx context.Context, req Request, sqlText string, out *executor.Outcome) postResult {
	ctx, cancel := context.WithTimeout(ctx, postProcessTimeout)
	defer cancel()

	sample := sampleJSON(out, sampleRowLimit)

	var res postResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res.suggestions = e.suggestions(gctx, req.Question, sqlText, sample)
		return nil
	})

	g.Go(func() error {
		if req.PreviousSQL == "" || !e.isFollowUp(gctx, req.Question, req.PreviousSQL) {
			return nil
		}
		res.summary = e.summarize(gctx, req.Question, sample)
		return nil
	})

	_ = g.Wait()
	return res
}

// suggestions asks the flash tier for three follow-up questions and parses
// the first JSON array out of whatever came back.
func (e *Engine) suggestions(ctx context.Context, question, sqlText, sample string) []string {
	raw, err := e.completion.Complete(ctx, prompt.SuggestionsPrompt(question, sqlText, sample), llm.TierFlash)
	if err != nil {
		e.logger.Debug("suggestion generation failed", "error", err)
		return nil
	}
	match := jsonArrayPattern.FindString(raw)
	if match == "" {
		return nil
	}
	var parsed []string
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil
	}
	out := parsed[:0]
	for _, s := range parsed {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// isFollowUp asks whether the question refines the previous query. Any
// failure means no.
func (e *Engine) isFollowUp(ctx context.Context, question, previousSQL string) bool {
	raw, err := e.completion.Complete(ctx, prompt.FollowUpPrompt(question, previousSQL), llm.TierFlash)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "yes")
}

// summarize asks for a one-sentence insight. Responses that look like the
// model echoed data back are dropped.
func (e *Engine) summarize(ctx context.Context, question, sample string) string {
	raw, err := e.completion.Complete(ctx, prompt.SummaryPrompt(question, sample), llm.TierFlash)
	if err != nil {
		e.logger.Debug("summary generation failed", "error", err)
		return ""
	}
	s := strings.Trim(strings.TrimSpace(raw), "\"'`")
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return ""
	}
	return s
}

// sampleJSON renders the first rows of a result set as a JSON array of
// objects for the insight prompts.
func sampleJSON(out *executor.Outcome, limit int) string {
	rows := out.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(out.Columns))
		for i, col := range out.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "[]"
	}
	return string(data)
}
