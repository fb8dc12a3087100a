package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/talkdata-labs/talkdata/internal/llm"
	"github.com/talkdata-labs/talkdata/internal/prompt"
)

// Selector turns a result set into a chart recommendation. Model selection
// first, heuristics when that fails; the request never fails because the
// model did.
type Selector struct {
	completion llm.Completion
	logger     *slog.Logger
}

// NewSelector creates a selector. completion may be nil, which skips model
// selection and goes straight to heuristics.
func NewSelector(completion llm.Completion, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Selector{completion: completion, logger: logger}
}

// Analyze recommends a chart for records. It fails with
// InsufficientDataError before any model call when there are fewer than two
// rows or two columns.
func (s *Selector) Analyze(ctx context.Context, records []Record, question string) (*Result, error) {
	if len(records) < 2 {
		return nil, &InsufficientDataError{Reason: "need at least 2 rows"}
	}
	columns := columnNames(records)
	if len(columns) < 2 {
		return nil, &InsufficientDataError{Reason: "need at least 2 columns"}
	}

	kinds := detectKinds(records, columns)
	s.logger.Debug("column kinds detected", "rows", len(records), "columns", len(columns))

	if sel := s.modelSelect(ctx, records, columns, kinds, question); sel != nil {
		res := s.shape(records, sel.chart, sel.x, sel.y, "")
		if res != nil {
			return res, nil
		}
	}

	if res := s.heuristics(records, columns, kinds); res != nil {
		return res, nil
	}

	// Last resort: first two columns as a bar chart.
	res := s.shape(records, ChartBar, columns[0], columns[1], "")
	res.Insight = fmt.Sprintf("Showing %s vs %s. %d total records.", columns[0], columns[1], len(records))
	return res, nil
}

type selection struct {
	x, y  string
	chart ChartType
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// modelSelect asks the flash tier to pick axes, then validates the answer
// against the actual columns. An x or y the data does not have falls back to
// the first categorical and first numeric column instead of failing.
func (s *Selector) modelSelect(ctx context.Context, records []Record, columns []string, kinds map[string]columnKind, question string) *selection {
	if s.completion == nil {
		return nil
	}
	numeric := columnsOfKind(columns, kinds, kindNumeric)
	if len(numeric) == 0 {
		return nil
	}

	summary := make([]string, 0, len(columns))
	for _, col := range columns {
		sample := toText(records[0][col])
		if len(sample) > 20 {
			sample = sample[:17] + "..."
		}
		summary = append(summary, fmt.Sprintf("%s (%s): %s", col, kinds[col], sample))
	}

	raw, err := s.completion.Complete(ctx,
		prompt.ChartPrompt(question, strings.Join(summary, "\n"), strings.Join(numeric, ", ")),
		llm.TierFlash)
	if err != nil {
		s.logger.Debug("chart selection call failed", "error", err)
		return nil
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return nil
	}
	var parsed struct {
		X     string `json:"x"`
		Y     string `json:"y"`
		Chart string `json:"chart"`
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil
	}

	sel := &selection{x: parsed.X, y: parsed.Y, chart: ChartType(parsed.Chart)}
	if !validChart(sel.chart) {
		sel.chart = ChartBar
	}
	if !slices.Contains(columns, sel.x) {
		sel.x = firstOfKind(columns, kinds, kindCategorical, columns[0])
	}
	if !slices.Contains(numeric, sel.y) {
		sel.y = numeric[0]
	}
	if sel.x == sel.y {
		for _, col := range columns {
			if col != sel.y {
				sel.x = col
				break
			}
		}
		if sel.x == sel.y {
			return nil
		}
	}
	return sel
}

// heuristics tries the pattern detectors in priority order: time series,
// category comparison, single-column distribution, numeric correlation.
func (s *Selector) heuristics(records []Record, columns []string, kinds map[string]columnKind) *Result {
	temporal := columnsOfKind(columns, kinds, kindTemporal)
	numeric := columnsOfKind(columns, kinds, kindNumeric)
	categorical := columnsOfKind(columns, kinds, kindCategorical)

	if len(temporal) > 0 && len(numeric) > 0 {
		reason := fmt.Sprintf("Time series detected: %s vs %s.", temporal[0], numeric[0])
		return s.shape(records, ChartLine, temporal[0], numeric[0], reason)
	}

	if len(categorical) > 0 && len(numeric) > 0 {
		reason := fmt.Sprintf("Category comparison: %s by %s.", categorical[0], numeric[0])
		return s.shape(records, ChartBar, categorical[0], numeric[0], reason)
	}

	if len(numeric) == 1 && len(columns) <= 2 {
		return histogram(records, numeric[0])
	}

	if x, y, r, ok := strongestCorrelation(records, numeric); ok {
		reason := fmt.Sprintf("Strong correlation (%.2f) between %s and %s.", r, x, y)
		return s.shape(records, ChartScatter, x, y, reason)
	}

	return nil
}

// shape prepares chart rows for the chosen type: pie charts get grouped sums
// of the top slices, line charts get sorted points, everything else gets the
// leading rows.
func (s *Selector) shape(records []Record, chart ChartType, x, y, reason string) *Result {
	var rows []Record
	switch chart {
	case ChartPie:
		rows = groupSum(records, x, y, 10)
	case ChartLine, ChartArea:
		rows = sortedPoints(records, x, y, 50)
	default:
		rows = headPoints(records, x, y, 30)
	}
	if len(rows) == 0 {
		return nil
	}
	return &Result{
		ChartType: chart,
		XKey:      x,
		YKey:      y,
		Rows:      rows,
		Insight:   insight(records, y, reason),
	}
}

// insight is a purely statistical summary; no model call involved.
func insight(records []Record, numericCol, reason string) string {
	parts := []string{fmt.Sprintf("Analyzed %d records across %d columns.", len(records), len(columnNames(records)))}
	if reason != "" {
		parts = append(parts, reason)
	}
	if stats, ok := columnStats(records, numericCol); ok {
		parts = append(parts, fmt.Sprintf("%s: avg=%.2f, range=[%.2f - %.2f]", numericCol, stats.mean, stats.min, stats.max))
	}
	return strings.Join(parts, " ")
}

type stats struct {
	mean, min, max float64
}

func columnStats(records []Record, col string) (stats, bool) {
	var st stats
	var n int
	for _, r := range records {
		f, ok := toFloat(r[col])
		if !ok {
			continue
		}
		if n == 0 {
			st.min, st.max = f, f
		}
		st.min = math.Min(st.min, f)
		st.max = math.Max(st.max, f)
		st.mean += f
		n++
	}
	if n == 0 {
		return st, false
	}
	st.mean /= float64(n)
	return st, true
}

func headPoints(records []Record, x, y string, limit int) []Record {
	out := make([]Record, 0, limit)
	for _, r := range records {
		if len(out) >= limit {
			break
		}
		out = append(out, point(r, x, y))
	}
	return out
}

func sortedPoints(records []Record, x, y string, limit int) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, point(r, x, y))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return toText(out[i][x]) < toText(out[j][x])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// groupSum collapses records to per-label sums and keeps the largest slices.
func groupSum(records []Record, x, y string, limit int) []Record {
	sums := make(map[string]float64)
	var order []string
	for _, r := range records {
		label := toText(r[x])
		if _, seen := sums[label]; !seen {
			order = append(order, label)
		}
		if f, ok := toFloat(r[y]); ok {
			sums[label] += f
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return sums[order[i]] > sums[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]Record, 0, len(order))
	for _, label := range order {
		out = append(out, Record{x: label, y: sums[label]})
	}
	return out
}

// histogram bins a single numeric column into up to 20 equal-width buckets.
func histogram(records []Record, col string) *Result {
	var values []float64
	for _, r := range records {
		if f, ok := toFloat(r[col]); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return nil
	}
	bins := 20
	if len(values) < bins {
		bins = len(values)
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}
	counts := make([]int, bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	rows := make([]Record, 0, bins)
	for i, c := range counts {
		rows = append(rows, Record{
			"bin":   fmt.Sprintf("%.1f-%.1f", lo+float64(i)*width, lo+float64(i+1)*width),
			"count": c,
		})
	}
	return &Result{
		ChartType: ChartHistogram,
		XKey:      "bin",
		YKey:      "count",
		Rows:      rows,
		Insight:   insight(records, col, fmt.Sprintf("Distribution of %s.", col)),
	}
}

// strongestCorrelation finds the numeric pair with the highest absolute
// Pearson correlation, if any pair exceeds 0.7.
func strongestCorrelation(records []Record, numeric []string) (string, string, float64, bool) {
	var bestX, bestY string
	var best float64
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			r, ok := pearson(records, numeric[i], numeric[j])
			if ok && math.Abs(r) > math.Abs(best) {
				best, bestX, bestY = r, numeric[i], numeric[j]
			}
		}
	}
	if math.Abs(best) > 0.7 {
		return bestX, bestY, best, true
	}
	return "", "", 0, false
}

func pearson(records []Record, a, b string) (float64, bool) {
	var xs, ys []float64
	for _, r := range records {
		x, okX := toFloat(r[a])
		y, okY := toFloat(r[b])
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	n := float64(len(xs))
	if n < 3 {
		return 0, false
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

func point(r Record, x, y string) Record {
	out := Record{x: r[x]}
	if f, ok := toFloat(r[y]); ok {
		out[y] = f
	} else {
		out[y] = r[y]
	}
	return out
}

func columnsOfKind(columns []string, kinds map[string]columnKind, kind columnKind) []string {
	var out []string
	for _, c := range columns {
		if kinds[c] == kind {
			out = append(out, c)
		}
	}
	return out
}

func firstOfKind(columns []string, kinds map[string]columnKind, kind columnKind, fallback string) string {
	for _, c := range columns {
		if kinds[c] == kind {
			return c
		}
	}
	return fallback
}
