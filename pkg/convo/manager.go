package convo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionEntry is the in-memory per-session state: the Session header plus
// its ordered message log and a dedicated mutex so appends within one
// session are serialized (spec §4.5/§5 ordering guarantee) while
// cross-session appends proceed concurrently.
type sessionEntry struct {
	mu       sync.Mutex
	session  *Session
	messages []*Message
}

// Manager is the Conversation Manager (spec C5): an in-memory session
// table keyed by session_id, an ordered per-session message log, and
// write-through (best-effort) persistence to a Store. Grounded on the
// teacher's pkg/session Service/memorySession split, generalized from
// the AppName/UserID/SessionID triple key to the spec's session_id-keyed
// Conversation entity.
type Manager struct {
	store Store

	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	newID func() string
	now   func() time.Time
}

// NewManager builds a Manager. store may be a degraded-mode
// implementation (every method a no-op) -- the Manager never special-
// cases that; it just treats every store error as non-fatal to the turn
// and keeps the in-memory table authoritative for the process lifetime.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*sessionEntry),
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

// Start assigns a session_id, persists the new Conversation, and --if an
// initial message is supplied-- appends it as the first user message
// (spec §4.5 Start / §6 POST /conversations/start).
func (m *Manager) Start(ctx context.Context, userID, agentID string, initialMessage string) (string, error) {
	now := m.now()
	s := &Session{
		SessionID: m.newID(),
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}

	entry := &sessionEntry{session: s}
	m.mu.Lock()
	m.sessions[s.SessionID] = entry
	m.mu.Unlock()

	if err := m.store.SaveConversation(ctx, s.Clone()); err != nil {
		logDegraded("save conversation", err)
	}

	if initialMessage != "" {
		if _, err := m.Append(ctx, s.SessionID, &Message{
			Role:    RoleUser,
			Content: initialMessage,
			Type:    MessageContent,
		}); err != nil {
			return "", err
		}
	}
	return s.SessionID, nil
}

// Append assigns a message_id and created_at, appends it to the
// session's ordered log, updates counters, and persists it best-effort.
// Calls for the same session_id are serialized by the session's own
// mutex so created_at is strictly non-decreasing and indices stay dense
// (spec §4.5/§5).
func (m *Manager) Append(ctx context.Context, sessionID string, msg *Message) (*Message, error) {
	entry, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	out := *msg
	out.SessionID = sessionID
	out.MessageID = m.newID()
	out.CreatedAt = m.now()
	entry.messages = append(entry.messages, &out)

	entry.session.MessageCount = len(entry.messages)
	entry.session.UpdatedAt = out.CreatedAt

	if err := m.store.AppendMessage(ctx, &out); err != nil {
		logDegraded("append message", err)
	}
	if err := m.store.UpdateConversation(ctx, entry.session.Clone()); err != nil {
		logDegraded("update conversation last_message_at", err)
	}

	cp := out
	return &cp, nil
}

// Get returns the Session header plus its ordered messages, lazily
// loading from the Store if the session is not (yet) in memory --
// e.g. after a process restart with persistence enabled (spec §4.5 Get,
// §8 scenario 1 "cold agent on second turn").
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, []*Message, error) {
	entry, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]*Message, len(entry.messages))
	copy(out, entry.messages)
	return entry.session.Clone(), out, nil
}

// ListByAgent lists sessions bound to agentID, preferring the Store but
// falling back to the in-memory session table when the Store yields
// nothing -- degraded mode returns an empty slice rather than an error,
// and without this fallback a session started while degraded would be
// invisible to every later ListByAgent call even though Start/Get both
// succeeded (spec §8 "persistence degradation").
func (m *Manager) ListByAgent(ctx context.Context, agentID string, limit, offset int) ([]*Session, error) {
	sessions, err := m.store.ListConversationsByAgent(ctx, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("convo: list by agent: %w", err)
	}
	if len(sessions) > 0 {
		return sessions, nil
	}
	return m.listFromCache(agentID, limit, offset), nil
}

// listFromCache mirrors the store's filter/order/paginate semantics
// (agent_id filter, created_at ascending, limit<=0 meaning unbounded)
// over the in-memory session table.
func (m *Manager) listFromCache(agentID string, limit, offset int) []*Session {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entry.mu.Lock()
		sess := entry.session
		entry.mu.Unlock()
		if sess.AgentID != agentID {
			continue
		}
		all = append(all, sess.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if limit <= 0 {
		return all
	}
	if offset >= len(all) {
		return []*Session{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// End marks a session inactive without deleting its history.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	entry, err := m.entry(ctx, sessionID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	entry.session.IsActive = false
	entry.session.UpdatedAt = m.now()
	snapshot := entry.session.Clone()
	entry.mu.Unlock()

	if err := m.store.UpdateConversation(ctx, snapshot); err != nil {
		logDegraded("end conversation", err)
	}
	return nil
}

// Delete hard-deletes a session and its messages (a Conversation owns
// its Messages; spec §3 Ownership).
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err := m.store.DeleteMessagesBySession(ctx, sessionID); err != nil {
		logDegraded("delete messages", err)
	}
	if err := m.store.DeleteConversation(ctx, sessionID); err != nil {
		logDegraded("delete conversation", err)
	}
	return nil
}

// History returns copies of the session's current messages for handing
// to a Runner as turn context. It returns []Message rather than
// importing pkg/runner, so pkg/convo stays a leaf package; the
// orchestrator adapts the result into runner.HistoryMessage.
func (m *Manager) History(ctx context.Context, sessionID string) ([]Message, error) {
	_, msgs, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		out[i] = *msg
	}
	return out, nil
}

// entry returns the in-memory entry for sessionID, lazily hydrating it
// from the Store (session header + full message log) if absent.
func (m *Manager) entry(ctx context.Context, sessionID string) (*sessionEntry, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return entry, nil
	}

	s, err := m.store.GetConversation(ctx, sessionID)
	if err != nil || s == nil {
		return nil, &NotFoundError{SessionID: sessionID}
	}
	msgs, err := m.store.ListMessagesBySession(ctx, sessionID, true)
	if err != nil {
		msgs = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok = m.sessions[sessionID]; ok {
		return entry, nil
	}
	entry = &sessionEntry{session: s, messages: msgs}
	m.sessions[sessionID] = entry
	return entry, nil
}

// logDegraded records a best-effort persistence failure -- never fatal
// to a turn (spec §4.2 "no persistence failure during a turn is allowed
// to abort the turn").
func logDegraded(op string, err error) {
	slog.Warn("convo: persistence call failed, continuing in-memory", "op", op, "error", err)
}
