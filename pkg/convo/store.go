package convo

import "context"

// Store is the narrow persistence seam over spec C2's Conversations and
// Messages operations. pkg/store implements it; in degraded mode every
// method is a no-op returning nil, which the Manager tolerates per
// spec §4.2 ("no persistence failure during a turn is allowed to abort
// the turn").
type Store interface {
	SaveConversation(ctx context.Context, s *Session) error
	GetConversation(ctx context.Context, sessionID string) (*Session, error)
	ListConversationsByAgent(ctx context.Context, agentID string, limit, offset int) ([]*Session, error)
	UpdateConversation(ctx context.Context, s *Session) error
	DeleteConversation(ctx context.Context, sessionID string) error

	AppendMessage(ctx context.Context, m *Message) error
	ListMessagesBySession(ctx context.Context, sessionID string, ascending bool) ([]*Message, error)
	CountMessagesBySession(ctx context.Context, sessionID string) (int, error)
	DeleteMessagesBySession(ctx context.Context, sessionID string) error
}
