// Package prompt assembles model prompts from schema, question, and prior
// attempt context. Pure string building, no I/O.
package prompt

import (
	"fmt"
	"strings"
)

// Input carries everything one prompt needs.
type Input struct {
	// Question is the user's natural-language question.
	Question string

	// Dialect is the datasource kind ("sqlite", "postgres", ...), used for
	// syntax hints.
	Dialect string

	// Schema is the rendered schema summary.
	Schema string

	// PreviousSQL is the SQL of the user's previous query, for follow-up
	// context. Empty on a fresh question.
	PreviousSQL string

	// PriorSQL and PriorError describe the failed attempt being retried.
	// Both empty on the first attempt.
	PriorSQL   string
	PriorError string

	// Attempt is 1-based; values above 1 produce a correction prompt.
	Attempt int
}

// Build renders the full prompt for one attempt. Retries embed the previous
// SQL and the exact failure message so the model corrects against a concrete
// error instead of guessing.
func Build(in Input) string {
	if in.Attempt > 1 && in.PriorError != "" {
		return buildRetry(in)
	}

	var b strings.Builder
	b.WriteString(system(in.Schema, in.Dialect))

	if in.PreviousSQL != "" {
		fmt.Fprintf(&b, `

### Previous Context
The user's previous query generated this SQL:
%s

If the new question is a follow-up, modify the previous SQL. Otherwise, generate a fresh query.`,
			fence(in.PreviousSQL))
	}

	fmt.Fprintf(&b, "\n\nUser Question: %s", in.Question)
	return b.String()
}

func buildRetry(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attempt %d failed with error: %s\n", in.Attempt-1, in.PriorError)
	if in.PriorSQL != "" {
		fmt.Fprintf(&b, "The query was: %s\n", in.PriorSQL)
	}
	fmt.Fprintf(&b, `
Carefully analyze the error and correct the SQL query to answer: %q

IMPORTANT:
- Check table and column names match this schema exactly:
%s
- Use proper %s syntax and only functions that exist in %s.
- Only read-only statements are permitted: a single SELECT (or WITH ... SELECT).

Return your response in this STRICT JSON format:
{
   "thought_process": "Step-by-step reasoning for the fix...",
   "sql_query": "Corrected SQL..."
}`, in.Question, in.Schema, dialectLabel(in.Dialect), dialectLabel(in.Dialect))
	return b.String()
}

func system(schemaSummary, dialect string) string {
	return fmt.Sprintf(`You are a data agent answering questions about a relational database by generating valid SQL.

### Database Schema
%s

### Instructions
1. **Reasoning**: Before generating any SQL, explain your reasoning step-by-step. Analyze the request and the schema to determine the correct tables, joins, and filters.
2. **SQL Generation**: Generate one valid SQL query that answers the question.
3. **Output Format**: Return your response in this **STRICT JSON** format:
{
   "thought_process": "Step-by-step reasoning here...",
   "sql_query": "SELECT ...;"
}

### CRITICAL RULES
- **Read-Only**: NEVER generate write statements (INSERT, UPDATE, DELETE, DROP, ALTER, CREATE). Only a single SELECT (optionally via WITH) is permitted.
- **DO NOT ASSUME ANYTHING**: If the question does not clearly relate to the schema above, do not guess; say so in thought_process and return a SELECT of a short explanatory message string.
- **Limit Results**: For non-aggregated listings, always add LIMIT 20.
- **Syntax**: Use standard %s syntax.%s`,
		schemaSummary, dialectLabel(dialect), dialectHints(dialect))
}

// SuggestionsPrompt asks for exactly three short follow-up questions.
func SuggestionsPrompt(question, sqlText, sampleJSON string) string {
	return fmt.Sprintf(`Based on this SQL query and data, suggest exactly 3 short follow-up questions.

User's Question: %s
SQL Query: %s
Sample Data: %s

Return ONLY a JSON array: ["Q1?", "Q2?", "Q3?"]
Keep questions under 10 words.`, question, sqlText, sampleJSON)
}

// FollowUpPrompt asks whether the question refines the previous query.
func FollowUpPrompt(question, previousSQL string) string {
	return fmt.Sprintf(`Previous SQL: %s
Question: %s

Is this a follow-up/refinement of the previous query? Answer ONLY "yes" or "no".`,
		truncate(previousSQL, 200), question)
}

// SummaryPrompt asks for a one-sentence insight over the first result rows.
func SummaryPrompt(question, sampleJSON string) string {
	return fmt.Sprintf(`User asked: %q
Data found (first rows): %s

Summarize the key insight in exactly 1 sentence. Be specific with numbers.
Return ONLY the summary sentence, no JSON, no quotes.`, question, sampleJSON)
}

// ChartPrompt asks the model to pick chart axes from a compact column
// summary. Token light: only names, detected types, and one sample value per
// column go over the wire.
func ChartPrompt(question, columnSummary, numericColumns string) string {
	return fmt.Sprintf(`Pick columns for a chart. X=category/label, Y=MUST be numeric.

User's Question: %s

COLUMNS:
%s

NUMERIC COLUMNS (use one for Y): %s

Reply JSON: {"x":"col_name","y":"numeric_col","chart":"bar|line|area|scatter|pie"}`,
		question, columnSummary, numericColumns)
}

func dialectLabel(dialect string) string {
	switch dialect {
	case "sqlite":
		return "SQLite"
	case "postgres":
		return "PostgreSQL"
	case "mysql":
		return "MySQL"
	case "duckdb":
		return "DuckDB"
	default:
		return "SQL"
	}
}

func dialectHints(dialect string) string {
	if dialect == "sqlite" {
		return "\n- **Date Extraction**: When extracting years from dates in SQLite, use `substr(DateCol, 1, 4)` instead of `strftime`."
	}
	return ""
}

func fence(sqlText string) string {
	return "```sql\n" + sqlText + "\n```"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
