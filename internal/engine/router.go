package engine

import (
	"strings"

	"github.com/talkdata-labs/talkdata/internal/llm"
)

// complexKeywords mark questions that tend to need multi-table joins,
// aggregation or negation, where the cheaper model misses too often.
var complexKeywords = []string{
	"compare", "ratio", "trend", "difference",
	"highest", "lowest", "who", "which", "never", "most",
}

// chooseTier routes a question to a model tier by keyword heuristic. This is
// deliberately dumb: the retry loop escalates to pro anyway, so the router
// only has to be right about the easy cases.
func chooseTier(question string) llm.Tier {
	q := strings.ToLower(question)
	for _, kw := range complexKeywords {
		if strings.Contains(q, kw) {
			return llm.TierPro
		}
	}
	return llm.TierFlash
}
