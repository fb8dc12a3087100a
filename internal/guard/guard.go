// Package guard is the read-only safety boundary. Every statement the model
// produces passes through Check before it may touch a connection; the only
// failure mode is "reject and let the engine retry".
//
// The checks run over a token stream rather than raw text, so keywords
// hidden in comments or string literals cannot bypass them, and string
// contents cannot trigger false rejections.
package guard

import (
	"fmt"
	"strings"

	"github.com/talkdata-labs/talkdata/internal/schema"
)

// Verdict is the result of a guard check.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allowed() Verdict { return Verdict{Allowed: true} }

func rejected(format string, args ...any) Verdict {
	return Verdict{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// leadingKeywords are the only statement-starting keywords permitted.
var leadingKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
}

// denied are write/DDL keywords rejected wherever they appear as bare words.
var denied = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"REPLACE":  true,
	"GRANT":    true,
	"ATTACH":   true,
	"PRAGMA":   true,
}

// functionForms are denied keywords that double as ordinary scalar functions
// and are harmless when immediately called, e.g. REPLACE(name, 'a', 'b').
var functionForms = map[string]bool{
	"REPLACE": true,
}

// Check validates that sqlText is a single read-only statement whose table
// references exist in sch. A nil sch skips the table check.
func Check(sqlText string, sch *schema.Descriptor) Verdict {
	tokens, err := tokenize(sqlText)
	if err != nil {
		return rejected("could not safely tokenize statement: %v", err)
	}
	if len(tokens) == 0 {
		return rejected("empty statement")
	}

	if v := checkSingleStatement(tokens); !v.Allowed {
		return v
	}
	tokens = trimSemicolons(tokens)
	if len(tokens) == 0 {
		return rejected("empty statement")
	}

	first := tokens[0]
	if first.kind != tokenWord || !leadingKeywords[first.upper] {
		return rejected("only SELECT, WITH or EXPLAIN statements are permitted, got %q", first.text)
	}

	if v := checkDenylist(tokens); !v.Allowed {
		return v
	}

	if sch != nil {
		if v := checkTables(tokens, sch); !v.Allowed {
			return v
		}
	}

	return allowed()
}

// checkSingleStatement rejects multi-statement batches. Semicolons are legal
// only as statement terminators, so any token after one means a second
// statement.
func checkSingleStatement(tokens []token) Verdict {
	seenEnd := false
	for _, t := range tokens {
		if t.kind == tokenSymbol && t.text == ";" {
			seenEnd = true
			continue
		}
		if seenEnd {
			return rejected("multi-statement batches are not permitted")
		}
	}
	return allowed()
}

func trimSemicolons(tokens []token) []token {
	out := tokens[:0:len(tokens)]
	for _, t := range tokens {
		if t.kind == tokenSymbol && t.text == ";" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func checkDenylist(tokens []token) Verdict {
	for i, t := range tokens {
		if t.kind != tokenWord || !denied[t.upper] {
			continue
		}
		if functionForms[t.upper] && i+1 < len(tokens) &&
			tokens[i+1].kind == tokenSymbol && tokens[i+1].text == "(" {
			continue
		}
		return rejected("statement contains forbidden keyword %s; read-only mode is enforced", t.upper)
	}
	return allowed()
}

// checkTables verifies every FROM/JOIN target against the schema, so a
// hallucinated table produces a clear retryable message instead of a raw
// driver error. CTE names defined by the statement's own WITH clause count
// as known; parenthesized subqueries and table functions are skipped, and a
// FROM that is a function operand (EXTRACT, SUBSTRING, TRIM) is not a table
// reference at all.
func checkTables(tokens []token, sch *schema.Descriptor) Verdict {
	ctes := collectCTENames(tokens)
	inCall := markFunctionArgs(tokens)

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind != tokenWord || (t.upper != "FROM" && t.upper != "JOIN") {
			continue
		}
		if inCall[i] {
			continue
		}

		// A FROM clause may list several tables separated by commas; each
		// one is validated in turn.
		j := i
		for j+1 < len(tokens) {
			next := tokens[j+1]
			if next.kind != tokenWord && next.kind != tokenQuoted {
				break // subquery or expression
			}
			j++
			name := next.text
			// Qualified reference: take the last path component.
			for j+2 < len(tokens) && tokens[j+1].kind == tokenSymbol && tokens[j+1].text == "." {
				j += 2
				name = tokens[j].text
			}
			// Table function, e.g. read_csv_auto(...) or pragma_table_info(...).
			if j+1 < len(tokens) && tokens[j+1].kind == tokenSymbol && tokens[j+1].text == "(" {
				break
			}

			if !ctes[strings.ToLower(name)] && !sch.HasTable(name) {
				return rejected("unknown table %q; available tables: %s",
					name, strings.Join(sch.TableNames(), ", "))
			}

			// Optional alias, then a comma continues the list.
			if j+1 < len(tokens) && isAliasToken(tokens[j+1]) {
				j++
				if tokens[j].upper == "AS" && j+1 < len(tokens) {
					j++
				}
			}
			if j+1 < len(tokens) && tokens[j+1].kind == tokenSymbol && tokens[j+1].text == "," {
				j++
				continue
			}
			break
		}
		i = j
	}
	return allowed()
}

// clauseWords terminate a FROM list entry and are never table aliases.
var clauseWords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "FETCH": true, "WINDOW": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "OUTER": true, "NATURAL": true, "ON": true, "USING": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true,
}

func isAliasToken(t token) bool {
	if t.kind == tokenQuoted {
		return true
	}
	return t.kind == tokenWord && !clauseWords[t.upper]
}

// nonCallWords may precede "(" without making it a function call: a
// parenthesis after one of these opens a subquery, a grouping, or a list.
var nonCallWords = map[string]bool{
	"SELECT": true, "FROM": true, "JOIN": true, "WHERE": true, "ON": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "EXISTS": true,
	"AS": true, "ALL": true, "ANY": true, "SOME": true, "BY": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true, "HAVING": true,
	"THEN": true, "ELSE": true, "WHEN": true, "CASE": true, "USING": true,
	"VALUES": true, "DISTINCT": true, "BETWEEN": true, "LIKE": true,
}

// markFunctionArgs flags every token whose innermost enclosing parenthesis
// is a function call, so keyword operands such as EXTRACT(YEAR FROM ts) are
// not mistaken for clauses. A subquery opens its own non-call parenthesis
// and clears the flag for its body.
func markFunctionArgs(tokens []token) []bool {
	marks := make([]bool, len(tokens))
	var stack []bool
	for i, t := range tokens {
		if t.kind == tokenSymbol {
			switch t.text {
			case "(":
				call := i > 0 && (tokens[i-1].kind == tokenQuoted ||
					(tokens[i-1].kind == tokenWord && !nonCallWords[tokens[i-1].upper]))
				stack = append(stack, call)
			case ")":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
		if len(stack) > 0 && stack[len(stack)-1] {
			marks[i] = true
		}
	}
	return marks
}

// collectCTENames gathers the names a leading WITH clause defines. It scans
// the region between WITH and the first top-level SELECT, picking bare or
// quoted identifiers at parenthesis depth zero that are followed by AS or a
// column list.
func collectCTENames(tokens []token) map[string]bool {
	names := map[string]bool{}

	start := 0
	if len(tokens) > 0 && tokens[0].upper == "EXPLAIN" {
		start = 1
		// Skip the optional QUERY PLAN modifier.
		for start < len(tokens) && (tokens[start].upper == "QUERY" || tokens[start].upper == "PLAN") {
			start++
		}
	}
	if start >= len(tokens) || tokens[start].upper != "WITH" {
		return names
	}

	depth := 0
	for i := start + 1; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind == tokenSymbol {
			switch t.text {
			case "(":
				depth++
			case ")":
				depth--
			}
			continue
		}
		if depth != 0 {
			continue
		}
		if t.upper == "SELECT" {
			break
		}
		if t.upper == "RECURSIVE" {
			continue
		}
		if (t.kind == tokenWord || t.kind == tokenQuoted) && i+1 < len(tokens) {
			next := tokens[i+1]
			followedByAS := next.kind == tokenWord && next.upper == "AS"
			followedByList := next.kind == tokenSymbol && next.text == "("
			if followedByAS || followedByList {
				names[strings.ToLower(t.text)] = true
			}
		}
	}
	return names
}
