package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentkit/orchestrator/pkg/convo"
)

func encodeMeta(m map[string]any) (string, error) {
	if m == nil {
		return "", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func decodeMeta(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveConversation inserts a new conversation row.
func (s *Store) SaveConversation(ctx context.Context, sess *convo.Session) error {
	if s.degraded {
		return nil
	}
	meta, err := encodeMeta(sess.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode conversation metadata: %w", err)
	}
	q := s.rebind(`INSERT INTO conversations (session_id, user_id, agent_id, created_at, updated_at, is_active, message_count, metadata)
		VALUES (?,?,?,?,?,?,?,?)`)
	_, err = s.db.ExecContext(ctx, q, sess.SessionID, sess.UserID, sess.AgentID, sess.CreatedAt, sess.UpdatedAt, sess.IsActive, sess.MessageCount, meta)
	if err != nil {
		return fmt.Errorf("store: save conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation row for sessionID, or
// (nil, nil) if absent.
func (s *Store) GetConversation(ctx context.Context, sessionID string) (*convo.Session, error) {
	if s.degraded {
		return nil, nil
	}
	q := s.rebind(`SELECT session_id, user_id, agent_id, created_at, updated_at, is_active, message_count, metadata
		FROM conversations WHERE session_id = ?`)
	row := s.db.QueryRowContext(ctx, q, sessionID)
	sess, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation: %w", err)
	}
	return sess, nil
}

// ListConversationsByAgent lists sessions bound to agentID, ordered by
// created_at for stable pagination.
func (s *Store) ListConversationsByAgent(ctx context.Context, agentID string, limit, offset int) ([]*convo.Session, error) {
	if s.degraded {
		return nil, nil
	}
	q := `SELECT session_id, user_id, agent_id, created_at, updated_at, is_active, message_count, metadata
		FROM conversations WHERE agent_id = ? ORDER BY created_at ASC`
	args := []any{agentID}
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var out []*convo.Session
	for rows.Next() {
		sess, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// UpdateConversation overwrites the mutable columns of an existing
// conversation row.
func (s *Store) UpdateConversation(ctx context.Context, sess *convo.Session) error {
	if s.degraded {
		return nil
	}
	meta, err := encodeMeta(sess.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode conversation metadata: %w", err)
	}
	q := s.rebind(`UPDATE conversations SET updated_at=?, is_active=?, message_count=?, metadata=? WHERE session_id=?`)
	_, err = s.db.ExecContext(ctx, q, sess.UpdatedAt, sess.IsActive, sess.MessageCount, meta, sess.SessionID)
	if err != nil {
		return fmt.Errorf("store: update conversation: %w", err)
	}
	return nil
}

// DeleteConversation hard-deletes the conversation row.
func (s *Store) DeleteConversation(ctx context.Context, sessionID string) error {
	if s.degraded {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM conversations WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("store: delete conversation: %w", err)
	}
	return nil
}

func scanConversation(rs rowScanner) (*convo.Session, error) {
	var sess convo.Session
	var meta string
	if err := rs.Scan(&sess.SessionID, &sess.UserID, &sess.AgentID, &sess.CreatedAt, &sess.UpdatedAt, &sess.IsActive, &sess.MessageCount, &meta); err != nil {
		return nil, err
	}
	m, err := decodeMeta(meta)
	if err != nil {
		return nil, err
	}
	sess.Metadata = m
	return &sess, nil
}

// AppendMessage inserts a message row and, in the same transaction,
// bumps the parent conversation's message_count/updated_at -- the spec
// §4.2 schema note ("last_message_at must be updated in the same
// transaction as append(message)").
func (s *Store) AppendMessage(ctx context.Context, m *convo.Message) error {
	if s.degraded {
		return nil
	}
	toolArgs, err := encodeMeta(m.ToolArgs)
	if err != nil {
		return fmt.Errorf("store: encode tool args: %w", err)
	}
	meta, err := encodeMeta(m.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode message metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append message tx: %w", err)
	}
	defer tx.Rollback()

	insert := s.rebind(`INSERT INTO messages (message_id, session_id, role, content, message_type,
		tool_name, tool_args, tool_call_id, is_streaming, is_complete, created_at, metadata)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if _, err := tx.ExecContext(ctx, insert,
		m.MessageID, m.SessionID, string(m.Role), m.Content, string(m.Type),
		m.ToolName, toolArgs, m.ToolCallID, m.IsStreaming, m.IsComplete, m.CreatedAt, meta,
	); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}

	bump := s.rebind(`UPDATE conversations SET message_count = message_count + 1, updated_at = ? WHERE session_id = ?`)
	if _, err := tx.ExecContext(ctx, bump, m.CreatedAt, m.SessionID); err != nil {
		return fmt.Errorf("store: bump conversation on append: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit append message tx: %w", err)
	}
	return nil
}

// ListMessagesBySession returns a session's messages ordered by
// created_at, ascending or descending.
func (s *Store) ListMessagesBySession(ctx context.Context, sessionID string, ascending bool) ([]*convo.Message, error) {
	if s.degraded {
		return nil, nil
	}
	order := "ASC"
	if !ascending {
		order = "DESC"
	}
	q := s.rebind(`SELECT message_id, session_id, role, content, message_type, tool_name, tool_args,
		tool_call_id, is_streaming, is_complete, created_at, metadata FROM messages
		WHERE session_id = ? ORDER BY created_at ` + order)
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []*convo.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// CountMessagesBySession returns how many messages a session has.
func (s *Store) CountMessagesBySession(ctx context.Context, sessionID string) (int, error) {
	if s.degraded {
		return 0, nil
	}
	var n int
	q := s.rebind(`SELECT COUNT(*) FROM messages WHERE session_id = ?`)
	if err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count messages: %w", err)
	}
	return n, nil
}

// DeleteMessagesBySession hard-deletes every message for sessionID
// (called as part of deleting the owning conversation; spec §3
// Ownership "deleting a Conversation deletes its Messages").
func (s *Store) DeleteMessagesBySession(ctx context.Context, sessionID string) error {
	if s.degraded {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("store: delete messages: %w", err)
	}
	return nil
}

func scanMessage(rs rowScanner) (*convo.Message, error) {
	var msg convo.Message
	var role, msgType, toolArgs, meta string
	var createdAt time.Time
	if err := rs.Scan(&msg.MessageID, &msg.SessionID, &role, &msg.Content, &msgType,
		&msg.ToolName, &toolArgs, &msg.ToolCallID, &msg.IsStreaming, &msg.IsComplete, &createdAt, &meta); err != nil {
		return nil, err
	}
	msg.Role = convo.Role(role)
	msg.Type = convo.MessageType(msgType)
	msg.CreatedAt = createdAt

	args, err := decodeMeta(toolArgs)
	if err != nil {
		return nil, err
	}
	msg.ToolArgs = args

	m, err := decodeMeta(meta)
	if err != nil {
		return nil, err
	}
	msg.Metadata = m
	return &msg, nil
}
