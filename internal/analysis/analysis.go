// Package analysis recommends a chart for a result set: a model picks the
// axes when it can, pattern heuristics take over when it cannot, and a
// statistical one-liner summarizes what the chart shows. It is independent of
// the query path and operates on plain records.
package analysis

import "fmt"

// ChartType is a renderable chart kind.
type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartArea      ChartType = "area"
	ChartScatter   ChartType = "scatter"
	ChartPie       ChartType = "pie"
	ChartHistogram ChartType = "histogram"
)

func validChart(t ChartType) bool {
	switch t {
	case ChartBar, ChartLine, ChartArea, ChartScatter, ChartPie, ChartHistogram:
		return true
	}
	return false
}

// Record is one row keyed by column name, as decoded from JSON.
type Record = map[string]any

// Result is a chart recommendation. XKey and YKey always name columns
// present in the shaped Rows.
type Result struct {
	ChartType ChartType `json:"type"`
	XKey      string    `json:"x_key"`
	YKey      string    `json:"y_key"`
	Rows      []Record  `json:"data"`
	Insight   string    `json:"insight_summary"`
}

// InsufficientDataError rejects input too small to chart, before any model
// call is made.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for analysis: %s", e.Reason)
}
