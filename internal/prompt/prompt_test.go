package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSchema = `Table: artists
Columns: id (INTEGER), name (TEXT)`

func TestBuildFirstAttempt(t *testing.T) {
	p := Build(Input{
		Question: "How many artists are there?",
		Dialect:  "sqlite",
		Schema:   testSchema,
		Attempt:  1,
	})

	assert.Contains(t, p, testSchema)
	assert.Contains(t, p, "STRICT JSON")
	assert.Contains(t, p, `"thought_process"`)
	assert.Contains(t, p, `"sql_query"`)
	assert.Contains(t, p, "User Question: How many artists are there?")
	assert.Contains(t, p, "SQLite")
	// sqlite gets the date extraction hint
	assert.Contains(t, p, "substr(DateCol, 1, 4)")
	assert.NotContains(t, p, "Previous Context")
}

func TestBuildWithPreviousSQL(t *testing.T) {
	p := Build(Input{
		Question:    "Only the top 3",
		Dialect:     "postgres",
		Schema:      testSchema,
		PreviousSQL: "SELECT name FROM artists LIMIT 10",
		Attempt:     1,
	})

	assert.Contains(t, p, "Previous Context")
	assert.Contains(t, p, "SELECT name FROM artists LIMIT 10")
	assert.Contains(t, p, "PostgreSQL")
	assert.NotContains(t, p, "substr(DateCol")
}

func TestBuildRetryEmbedsError(t *testing.T) {
	p := Build(Input{
		Question:   "How many artists?",
		Dialect:    "sqlite",
		Schema:     testSchema,
		PriorSQL:   "SELECT COUNT(*) FROM artist",
		PriorError: "no such table: artist",
		Attempt:    2,
	})

	assert.Contains(t, p, "Attempt 1 failed with error: no such table: artist")
	assert.Contains(t, p, "SELECT COUNT(*) FROM artist")
	assert.Contains(t, p, testSchema)
	assert.Contains(t, p, "STRICT JSON")
	// the retry prompt is the correction form, not the system prompt
	assert.NotContains(t, p, "You are a data agent")
}

func TestBuildRetryWithoutPriorErrorFallsBackToFresh(t *testing.T) {
	p := Build(Input{
		Question: "How many artists?",
		Dialect:  "sqlite",
		Schema:   testSchema,
		Attempt:  2,
	})
	assert.Contains(t, p, "You are a data agent")
}

func TestDialectLabels(t *testing.T) {
	assert.Equal(t, "SQLite", dialectLabel("sqlite"))
	assert.Equal(t, "PostgreSQL", dialectLabel("postgres"))
	assert.Equal(t, "MySQL", dialectLabel("mysql"))
	assert.Equal(t, "DuckDB", dialectLabel("duckdb"))
	assert.Equal(t, "SQL", dialectLabel("anything"))
}

func TestSuggestionsPrompt(t *testing.T) {
	p := SuggestionsPrompt("top artists", "SELECT 1", `[{"n":1}]`)
	assert.Contains(t, p, "exactly 3 short follow-up questions")
	assert.Contains(t, p, "top artists")
	assert.Contains(t, p, "SELECT 1")
	assert.Contains(t, p, `[{"n":1}]`)
}

func TestFollowUpPromptTruncatesPreviousSQL(t *testing.T) {
	long := strings.Repeat("SELECT * FROM t UNION ", 50)
	p := FollowUpPrompt("and by year?", long)
	assert.Contains(t, p, "follow-up/refinement")
	assert.NotContains(t, p, long)
	assert.Contains(t, p, long[:200])
}

func TestChartPrompt(t *testing.T) {
	p := ChartPrompt("revenue by region", "region (categorical): North\nrevenue (numeric): 120.5", "revenue")
	assert.Contains(t, p, "X=category/label")
	assert.Contains(t, p, "region (categorical): North")
	assert.Contains(t, p, "NUMERIC COLUMNS (use one for Y): revenue")
	assert.Contains(t, p, `{"x":"col_name","y":"numeric_col","chart":`)
}
