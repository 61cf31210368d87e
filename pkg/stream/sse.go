package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Flusher is the minimal surface WriteSSE needs from an http.ResponseWriter.
// The teacher's pkg/server/http.go is explicit that the ResponseWriter
// handed to a handler must never be wrapped -- doing so silently drops
// the http.Flusher type assertion and breaks streaming -- so this
// package never introduces its own wrapper either. Any wrapper a caller
// puts in front of WriteSSE must forward Flush, as pkg/httpapi's
// metrics middleware wrapper does.
type Flusher interface {
	Write([]byte) (int, error)
	http.Flusher
}

// WriteSSE encodes evt as one Server-Sent Events frame and flushes it
// immediately, grounded on the teacher's pkg/a2a/server.go sendSSEEvent
// ("event: %s\ndata: %s\n\n" followed by Flush()).
func WriteSSE(w Flusher, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("stream: marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, body); err != nil {
		return err
	}
	w.Flush()
	return nil
}
