package engine

// EventKind tags the events an orchestration run emits. Downstream
// transports (SSE, CLI) switch over the closed set; adding a kind here is a
// contract change.
type EventKind string

const (
	EventStatus      EventKind = "status"
	EventModel       EventKind = "model"
	EventThought     EventKind = "thought"
	EventSQL         EventKind = "sql"
	EventTable       EventKind = "table"
	EventSuggestions EventKind = "suggestions"
	EventSummary     EventKind = "summary"
	EventError       EventKind = "error"
	EventDone        EventKind = "done"
)

// TablePayload carries a normalized result set.
type TablePayload struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"results"`
	Truncated bool       `json:"truncated,omitempty"`
}

// DonePayload terminates every run, success or failure.
type DonePayload struct {
	Status string `json:"status"` // "success" or "error"
	Cached bool   `json:"cached,omitempty"`
}

// Event is one entry of the run's ordered event stream. Exactly one payload
// field is set, selected by Kind.
type Event struct {
	Kind EventKind

	Text        string // status, model, thought, sql, summary, error
	Table       *TablePayload
	Suggestions []string
	Done        *DonePayload
}

func statusEvent(text string) Event  { return Event{Kind: EventStatus, Text: text} }
func modelEvent(name string) Event   { return Event{Kind: EventModel, Text: name} }
func thoughtEvent(text string) Event { return Event{Kind: EventThought, Text: text} }
func sqlEvent(text string) Event     { return Event{Kind: EventSQL, Text: text} }
func summaryEvent(text string) Event { return Event{Kind: EventSummary, Text: text} }
func errorEvent(text string) Event   { return Event{Kind: EventError, Text: text} }

func tableEvent(p TablePayload) Event { return Event{Kind: EventTable, Table: &p} }

func suggestionsEvent(s []string) Event { return Event{Kind: EventSuggestions, Suggestions: s} }

func doneEvent(status string, cached bool) Event {
	return Event{Kind: EventDone, Done: &DonePayload{Status: status, Cached: cached}}
}
