package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// columnKind is the coarse data type driving axis selection.
type columnKind int

const (
	kindCategorical columnKind = iota
	kindNumeric
	kindTemporal
)

func (k columnKind) String() string {
	switch k {
	case kindNumeric:
		return "numeric"
	case kindTemporal:
		return "datetime"
	default:
		return "categorical"
	}
}

// typedThreshold is the fraction of non-empty values that must parse for a
// column to count as numeric or temporal.
const typedThreshold = 0.7

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
}

// columnNames returns the union of keys across records in a deterministic
// order. JSON objects carry no order, so sorted order stands in for it.
func columnNames(records []Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

// detectKinds classifies each column by sampling its values.
func detectKinds(records []Record, columns []string) map[string]columnKind {
	kinds := make(map[string]columnKind, len(columns))
	for _, col := range columns {
		kinds[col] = detectKind(records, col)
	}
	return kinds
}

func detectKind(records []Record, col string) columnKind {
	var total, numeric, temporal int
	for _, r := range records {
		v, ok := r[col]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64, float32, int, int64:
			total++
			numeric++
		case bool:
			total++
		case string:
			s := strings.TrimSpace(val)
			if s == "" {
				continue
			}
			total++
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				numeric++
			} else if parseableTime(s) {
				temporal++
			}
		default:
			total++
		}
	}
	if total == 0 {
		return kindCategorical
	}
	if float64(numeric)/float64(total) >= typedThreshold {
		return kindNumeric
	}
	if float64(temporal)/float64(total) >= typedThreshold {
		return kindTemporal
	}
	return kindCategorical
}

func parseableTime(s string) bool {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// toFloat coerces a record value to a number.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toText renders a record value as an axis label.
func toText(v any) string {
	switch val := v.(type) {
	case nil:
		return "Unknown"
	case string:
		if strings.TrimSpace(val) == "" {
			return "Unknown"
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
