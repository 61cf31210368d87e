package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
)

type startConversationRequest struct {
	UserID         string `json:"user_id"`
	AgentID        string `json:"agent_id"`
	InitialMessage string `json:"initial_message"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sid, err := s.rt.StartConversation(r.Context(), req.UserID, req.AgentID, req.InitialMessage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sid})
}

func sessionDTO(sess *convo.Session) map[string]any {
	return map[string]any{
		"session_id":    sess.SessionID,
		"user_id":       sess.UserID,
		"agent_id":      sess.AgentID,
		"is_active":     sess.IsActive,
		"message_count": sess.MessageCount,
		"created_at":    sess.CreatedAt,
		"updated_at":    sess.UpdatedAt,
		"metadata":      sess.Metadata,
	}
}

func messageDTO(m *convo.Message) map[string]any {
	return map[string]any{
		"message_id":   m.MessageID,
		"session_id":   m.SessionID,
		"role":         m.Role,
		"content":      m.Content,
		"type":         m.Type,
		"tool_name":    m.ToolName,
		"tool_args":    m.ToolArgs,
		"tool_call_id": m.ToolCallID,
		"is_streaming": m.IsStreaming,
		"is_complete":  m.IsComplete,
		"created_at":   m.CreatedAt,
		"metadata":     m.Metadata,
	}
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	sess, msgs, err := s.rt.Convo.Get(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, orchestrator.ClassifyError(err))
		return
	}
	out := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		out[i] = messageDTO(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sessionDTO(sess),
		"messages": out,
	})
}

func (s *Server) handleListConversationsByAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent_id")
	limit, offset := pagination(r)
	sessions, err := s.rt.Convo.ListByAgent(r.Context(), agentID, limit, offset)
	if err != nil {
		writeDomainError(w, orchestrator.ClassifyError(err))
		return
	}
	out := make([]map[string]any, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionDTO(sess)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if err := s.rt.Convo.Delete(r.Context(), sessionID); err != nil {
		writeDomainError(w, orchestrator.ClassifyError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
