package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdata-labs/talkdata/internal/llm"
	"github.com/talkdata-labs/talkdata/internal/testutil"
)

type stubCompletion struct {
	response string
	err      error
	calls    int
}

func (s *stubCompletion) Complete(ctx context.Context, promptText string, tier llm.Tier) (string, error) {
	s.calls++
	return s.response, s.err
}

func salesRecords() []Record {
	return []Record{
		{"region": "North", "revenue": 120.5, "units": 12.0},
		{"region": "South", "revenue": 80.0, "units": 8.0},
		{"region": "East", "revenue": 95.25, "units": 10.0},
		{"region": "West", "revenue": 60.0, "units": 6.0},
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	stub := &stubCompletion{}
	sel := NewSelector(stub, testutil.NewTestLogger(t))

	t.Run("one row", func(t *testing.T) {
		_, err := sel.Analyze(context.Background(), []Record{{"a": 1.0, "b": 2.0}}, "")
		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Contains(t, insufficient.Reason, "2 rows")
	})

	t.Run("one column", func(t *testing.T) {
		_, err := sel.Analyze(context.Background(), []Record{{"a": 1.0}, {"a": 2.0}}, "")
		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Contains(t, insufficient.Reason, "2 columns")
	})

	// fails fast, before any model call
	assert.Zero(t, stub.calls)
}

func TestAnalyzeModelSelection(t *testing.T) {
	stub := &stubCompletion{response: `{"x":"region","y":"revenue","chart":"bar"}`}
	sel := NewSelector(stub, testutil.NewTestLogger(t))

	res, err := sel.Analyze(context.Background(), salesRecords(), "revenue by region")
	require.NoError(t, err)

	assert.Equal(t, ChartBar, res.ChartType)
	assert.Equal(t, "region", res.XKey)
	assert.Equal(t, "revenue", res.YKey)
	require.Len(t, res.Rows, 4)
	for _, row := range res.Rows {
		assert.Contains(t, row, "region")
		assert.Contains(t, row, "revenue")
	}
	assert.Contains(t, res.Insight, "Analyzed 4 records across 3 columns.")
	assert.Contains(t, res.Insight, "revenue: avg=88.94")
}

func TestAnalyzeValidatesModelKeys(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantX    string
		wantY    string
	}{
		{"unknown x falls back to first categorical", `{"x":"country","y":"revenue","chart":"bar"}`, "region", "revenue"},
		{"non-numeric y falls back to first numeric", `{"x":"region","y":"region","chart":"bar"}`, "region", "revenue"},
		{"unknown chart type becomes bar", `{"x":"region","y":"units","chart":"treemap"}`, "region", "units"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewSelector(&stubCompletion{response: tt.response}, testutil.NewTestLogger(t))
			res, err := sel.Analyze(context.Background(), salesRecords(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantX, res.XKey)
			assert.Equal(t, tt.wantY, res.YKey)
			assert.Equal(t, ChartBar, res.ChartType)
		})
	}
}

func TestAnalyzeFallsBackToHeuristicsOnModelFailure(t *testing.T) {
	stub := &stubCompletion{err: &llm.Error{Transient: true, Err: errors.New("overloaded")}}
	sel := NewSelector(stub, testutil.NewTestLogger(t))

	res, err := sel.Analyze(context.Background(), salesRecords(), "")
	require.NoError(t, err)

	// categorical + numeric pattern lands on a bar chart
	assert.Equal(t, ChartBar, res.ChartType)
	assert.Equal(t, "region", res.XKey)
	assert.Equal(t, "revenue", res.YKey)
}

func TestHeuristicTimeSeriesPrefersLine(t *testing.T) {
	records := []Record{
		{"day": "2024-03-02", "visits": 40.0},
		{"day": "2024-03-01", "visits": 30.0},
		{"day": "2024-03-03", "visits": 55.0},
	}
	sel := NewSelector(nil, testutil.NewTestLogger(t))

	res, err := sel.Analyze(context.Background(), records, "")
	require.NoError(t, err)

	assert.Equal(t, ChartLine, res.ChartType)
	assert.Equal(t, "day", res.XKey)
	assert.Equal(t, "visits", res.YKey)
	// line points come back sorted by x
	assert.Equal(t, "2024-03-01", res.Rows[0]["day"])
	assert.Equal(t, "2024-03-03", res.Rows[2]["day"])
}

func TestHistogramBinning(t *testing.T) {
	records := make([]Record, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, Record{"score": float64(i * 10), "note": "n/a"})
	}

	res := histogram(records, "score")
	require.NotNil(t, res)

	assert.Equal(t, ChartHistogram, res.ChartType)
	assert.Equal(t, "bin", res.XKey)
	assert.Equal(t, "count", res.YKey)
	require.Len(t, res.Rows, 10) // fewer values than the bin cap
	total := 0
	for _, row := range res.Rows {
		total += row["count"].(int)
	}
	assert.Equal(t, 10, total)
}

func TestPieChartGroupsAndLimits(t *testing.T) {
	var records []Record
	for i := 0; i < 15; i++ {
		records = append(records, Record{"category": fmt.Sprintf("c%02d", i), "total": float64(i)})
		records = append(records, Record{"category": fmt.Sprintf("c%02d", i), "total": float64(i)})
	}
	stub := &stubCompletion{response: `{"x":"category","y":"total","chart":"pie"}`}
	sel := NewSelector(stub, testutil.NewTestLogger(t))

	res, err := sel.Analyze(context.Background(), records, "")
	require.NoError(t, err)

	assert.Equal(t, ChartPie, res.ChartType)
	require.Len(t, res.Rows, 10)
	// grouped sums, largest first
	assert.Equal(t, "c14", res.Rows[0]["category"])
	assert.Equal(t, 28.0, res.Rows[0]["total"])
}

func TestAnalyzeKeysAlwaysPresentInColumns(t *testing.T) {
	// Arbitrary model answers never produce keys outside the data.
	answers := []string{
		`{"x":"bogus","y":"fake","chart":"pie"}`,
		`not json at all`,
		`{"x":"units","y":"units","chart":"line"}`,
	}
	for _, answer := range answers {
		sel := NewSelector(&stubCompletion{response: answer}, testutil.NewTestLogger(t))
		res, err := sel.Analyze(context.Background(), salesRecords(), "")
		require.NoError(t, err)
		columns := columnNames(salesRecords())
		assert.Contains(t, columns, res.XKey)
		assert.Contains(t, columns, res.YKey)
		assert.NotEqual(t, res.XKey, res.YKey)
	}
}

func TestDetectKind(t *testing.T) {
	records := []Record{
		{"n": "1.5", "d": "2024-01-02", "c": "alpha", "mixed": "10"},
		{"n": "2.5", "d": "2024-01-03", "c": "beta", "mixed": "x"},
		{"n": "3.0", "d": "2024-01-04", "c": "gamma", "mixed": "y"},
	}
	kinds := detectKinds(records, columnNames(records))
	assert.Equal(t, kindNumeric, kinds["n"])
	assert.Equal(t, kindTemporal, kinds["d"])
	assert.Equal(t, kindCategorical, kinds["c"])
	assert.Equal(t, kindCategorical, kinds["mixed"])
}
