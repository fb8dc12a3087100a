// Package extract parses raw model output into a reasoning trace and a SQL
// statement. Models are asked for strict JSON but routinely wrap it in
// markdown fences or prose, so extraction is layered: JSON body first, then
// fenced SQL blocks, then nothing.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Result is the parsed model output. SQL is empty when no statement was
// found; that is a negative result, not an error, and triggers a retry.
type Result struct {
	Reasoning string
	SQL       string
}

// HasSQL reports whether a statement was extracted.
func (r Result) HasSQL() bool { return r.SQL != "" }

var (
	fencedBlockRe = regexp.MustCompile("(?is)```(?:json|sql)?\\s*\\n?(.*?)```")
	jsonObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
)

// Parse extracts {reasoning, sql} from raw completion text. Never fails:
// text with no recognizable SQL yields a Result whose Reasoning is the whole
// text and whose SQL is empty.
func Parse(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}
	}

	if res, ok := parseJSON(raw); ok {
		return res
	}

	if sqlText, reasoning, ok := parseFenced(raw); ok {
		return Result{Reasoning: reasoning, SQL: NormalizeSQL(sqlText)}
	}

	return Result{Reasoning: raw}
}

type jsonPayload struct {
	ThoughtProcess string `json:"thought_process"`
	SQLQuery       string `json:"sql_query"`
}

// parseJSON handles the strict JSON contract, tolerating markdown fences and
// surrounding prose around the object.
func parseJSON(raw string) (Result, bool) {
	candidate := raw
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}
	if m := jsonObjectRe.FindString(candidate); m != "" {
		candidate = m
	}

	var payload jsonPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return Result{}, false
	}
	if payload.SQLQuery == "" && payload.ThoughtProcess == "" {
		return Result{}, false
	}
	return Result{
		Reasoning: strings.TrimSpace(payload.ThoughtProcess),
		SQL:       NormalizeSQL(payload.SQLQuery),
	}, true
}

// parseFenced pulls SQL out of fenced code blocks. With multiple blocks the
// last one wins, on the assumption it is the corrected/final one. Text
// outside the fences becomes the reasoning trace.
func parseFenced(raw string) (sqlText, reasoning string, ok bool) {
	matches := fencedBlockRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return "", "", false
	}

	last := matches[len(matches)-1]
	sqlText = raw[last[2]:last[3]]

	var outside []string
	prev := 0
	for _, m := range matches {
		outside = append(outside, raw[prev:m[0]])
		prev = m[1]
	}
	outside = append(outside, raw[prev:])
	reasoning = strings.TrimSpace(strings.Join(outside, " "))

	return sqlText, reasoning, strings.TrimSpace(sqlText) != ""
}

// NormalizeSQL trims whitespace and trailing semicolons.
func NormalizeSQL(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}
