// Package convo implements the Conversation Manager (spec C5): an
// in-memory session table and ordered per-session message log, backed
// by write-through (best-effort) persistence. Grounded on the teacher's
// pkg/session (memorySession/memoryState/memoryEvents), adapted from a
// generic app/state/event session model to the spec's
// Conversation+Message schema.
package convo

import "time"

// Role is who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MessageType narrows what Content represents.
type MessageType string

const (
	MessageContent      MessageType = "content"
	MessageToolCall     MessageType = "tool_call"
	MessageToolResponse MessageType = "tool_response"
	MessageThinking     MessageType = "thinking"
	MessageError        MessageType = "error"
)

// Message is one entry in a session's ordered log (spec §3 Message).
type Message struct {
	MessageID   string
	SessionID   string
	Role        Role
	Content     string
	Type        MessageType
	ToolName    string
	ToolArgs    map[string]any
	ToolCallID  string
	IsStreaming bool
	IsComplete  bool
	CreatedAt   time.Time
	Metadata    map[string]any
}

// Session is a Conversation (spec §3 Conversation) bound to exactly one
// top-level agent for its lifetime.
type Session struct {
	SessionID    string
	UserID       string
	AgentID      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
	MessageCount int
	Metadata     map[string]any
}

// Clone returns a shallow-safe copy for handing to callers without
// exposing the manager's internal pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Metadata != nil {
		cp.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
