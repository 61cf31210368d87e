package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/store"
)

func TestNewFromDSNDegradesOnEmptyDSN(t *testing.T) {
	s := store.NewFromDSN("")
	assert.True(t, s.Degraded())

	// Every method is a documented no-op in degraded mode.
	id, err := s.GetAgent(context.Background(), "whatever")
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestNewFromDSNDegradesOnUnreachableDatabase(t *testing.T) {
	s := store.NewFromDSN("postgres://no-such-host.invalid:5432/db?connect_timeout=1")
	assert.True(t, s.Degraded())
}

func TestSQLiteAgentRoundTrip(t *testing.T) {
	s := store.NewFromDSN(":memory:")
	require.False(t, s.Degraded())
	defer s.Close()

	def := &agent.Definition{
		AgentID:     "a1",
		Name:        "Assistant",
		Version:     1,
		IsActive:    true,
		Expertise:   []string{"math", "search"},
		ToolNames:   []string{"custom_calculator"},
		AgentType:   agent.TypeStandard,
		Planner:     agent.PlannerNone,
		CreatedAt:   time.Now().Truncate(time.Second),
		Metadata:    map[string]any{"owner": "team-a"},
	}
	require.NoError(t, s.SaveAgent(context.Background(), def))

	got, err := s.GetAgent(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Expertise, got.Expertise)
	assert.Equal(t, def.ToolNames, got.ToolNames)
	assert.Equal(t, "team-a", got.Metadata["owner"])

	require.NoError(t, s.BumpAgentUsage(context.Background(), "a1"))
	got, err = s.GetAgent(context.Background(), "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.UsageCount)

	require.NoError(t, s.DeleteAgent(context.Background(), "a1"))
	list, err := s.ListAgents(context.Background(), true, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListAgents(context.Background(), false, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsActive)
}

func TestSQLiteConversationAndMessageRoundTrip(t *testing.T) {
	s := store.NewFromDSN(":memory:")
	require.False(t, s.Degraded())
	defer s.Close()

	now := time.Now().Truncate(time.Second)
	sess := &convo.Session{
		SessionID: "s1",
		UserID:    "u1",
		AgentID:   "a1",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	require.NoError(t, s.SaveConversation(context.Background(), sess))

	msg := &convo.Message{
		MessageID: "m1",
		SessionID: "s1",
		Role:      convo.RoleUser,
		Content:   "hello",
		Type:      convo.MessageContent,
		CreatedAt: now,
	}
	require.NoError(t, s.AppendMessage(context.Background(), msg))

	got, err := s.GetConversation(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.MessageCount)

	msgs, err := s.ListMessagesBySession(context.Background(), "s1", true)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	n, err := s.CountMessagesBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteMessagesBySession(context.Background(), "s1"))
	n, err = s.CountMessagesBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DeleteConversation(context.Background(), "s1"))
	got, err = s.GetConversation(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
