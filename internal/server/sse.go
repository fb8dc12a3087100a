package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/talkdata-labs/talkdata/internal/engine"
)

// sseWriter frames server-sent events. Text payloads go out as-is (split
// into one data line per line of text), structured payloads as JSON.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) text(name, text string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", name)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return s.send(b.String())
}

func (s *sseWriter) object(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.send(fmt.Sprintf("event: %s\ndata: %s\n\n", name, data))
}

func (s *sseWriter) send(frame string) error {
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// event writes one engine event in its wire form.
func (s *sseWriter) event(ev engine.Event) error {
	name := string(ev.Kind)
	switch ev.Kind {
	case engine.EventTable:
		return s.object(name, ev.Table)
	case engine.EventSuggestions:
		return s.object(name, ev.Suggestions)
	case engine.EventDone:
		return s.object(name, ev.Done)
	default:
		return s.text(name, ev.Text)
	}
}
