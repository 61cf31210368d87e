package httpapi

import (
	"net/http"

	"github.com/agentkit/orchestrator/pkg/stream"
)

type streamingStartRequest struct {
	UserID         string `json:"user_id"`
	AgentID        string `json:"agent_id"`
	InitialMessage string `json:"initial_message"`
}

// handleStreamingStart begins a conversation and immediately streams
// its first turn back as Server-Sent Events (spec §6 POST
// /streaming/start). It subscribes to the broker before driving the
// turn so no early event can be missed, and never wraps w (breaks
// http.Flusher, per the teacher's loggingMiddleware comment).
func (s *Server) handleStreamingStart(w http.ResponseWriter, r *http.Request) {
	var req streamingStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, err := s.rt.StartConversation(r.Context(), req.UserID, req.AgentID, req.InitialMessage)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(stream.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by this response writer")
		return
	}
	s.streamTurn(w.Header(), flusher, r, sessionID, req.AgentID, req.InitialMessage)
}

type streamingSendRequest struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
}

// handleStreamingSend drives one more turn on an existing session
// (spec §6 POST /streaming/send). When Stream is false the turn runs
// headless: the broker still receives every event (so any separately
// open listener keeps working) but this response is a plain JSON ack
// once the turn finishes, avoiding the SSE content type for callers
// that only want the final transcript.
func (s *Server) handleStreamingSend(w http.ResponseWriter, r *http.Request) {
	var req streamingSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if !req.Stream {
		cancel := s.rt.CancelFor(req.AgentID)
		if err := s.rt.SendMessage(r.Context(), req.SessionID, req.Message, cancel); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"session_id": req.SessionID, "status": "complete"})
		return
	}

	flusher, ok := w.(stream.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by this response writer")
		return
	}
	s.streamTurn(w.Header(), flusher, r, req.SessionID, req.AgentID, req.Message)
}

// streamTurn subscribes to the session's broker feed, drives the turn
// in the background, and forwards every event as an SSE frame until a
// "complete" event closes the turn, then emits the [DONE] sentinel
// (spec §6: "terminal sentinel data: [DONE]").
func (s *Server) streamTurn(header http.Header, flusher stream.Flusher, r *http.Request, sessionID, agentID, message string) {
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	flusher.Flush()

	events, unsubscribe := s.rt.Broker.Subscribe(sessionID)
	defer unsubscribe()

	cancel := s.rt.CancelFor(agentID)
	done := make(chan error, 1)
	go func() {
		done <- s.rt.SendMessage(r.Context(), sessionID, message, cancel)
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				writeDoneSentinel(flusher)
				return
			}
			if err := stream.WriteSSE(flusher, evt); err != nil {
				return
			}
			if evt.Type == stream.TypeComplete {
				writeDoneSentinel(flusher)
				return
			}
		case <-r.Context().Done():
			return
		case err := <-done:
			// A nil error here just means SendMessage returned; its
			// own "complete" event is already sitting in events'
			// buffer and the next loop iteration picks it up. A
			// non-nil error means the turn never started (session
			// lookup or materialization failed before RunTurn could
			// publish anything), so there is nothing left to wait for.
			if err != nil {
				writeSyncErrorFrame(flusher, sessionID, err)
				writeDoneSentinel(flusher)
				return
			}
		}
	}
}

func writeDoneSentinel(flusher stream.Flusher) {
	_, _ = flusher.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// writeSyncErrorFrame surfaces a synchronous SendMessage failure (one
// that happened before RunTurn could publish its own TypeError event,
// e.g. session lookup or agent materialization) as its own SSE error
// frame.
func writeSyncErrorFrame(flusher stream.Flusher, sessionID string, err error) {
	_ = stream.WriteSSE(flusher, stream.Event{
		Type:      stream.TypeError,
		SessionID: sessionID,
		Content:   err.Error(),
	})
}
