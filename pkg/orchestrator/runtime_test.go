package orchestrator_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/obslog"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
	"github.com/agentkit/orchestrator/pkg/runner"
	"github.com/agentkit/orchestrator/pkg/stream"
)

func newTestRuntime(t *testing.T, backend runner.Runner) *orchestrator.Runtime {
	t.Helper()
	rt := orchestrator.New(orchestrator.Config{DSN: ":memory:", Runner: backend})
	require.False(t, rt.Store.Degraded())
	return rt
}

func TestRuntimeColdAgentToolCallScenario(t *testing.T) {
	mock := &runner.MockRunner{Script: []runner.ScriptedTurn{
		{ToolName: "custom_calculator", ToolArgs: map[string]any{"expr": "2+2"}, FinalText: "4"},
	}}
	rt := newTestRuntime(t, mock)
	ctx := context.Background()

	agentID, err := rt.Agents.Create(ctx, &agent.Definition{
		Name:      "calc-agent",
		ToolNames: []string{"custom_calculator"},
		ModelID:   "echo",
	})
	require.NoError(t, err)

	sid, err := rt.StartConversation(ctx, "u1", agentID, "")
	require.NoError(t, err)

	sub, unsub := rt.Broker.Subscribe(sid)
	defer unsub()

	require.NoError(t, rt.SendMessage(ctx, sid, "2+2", nil))

	var events []stream.Event
	for i := 0; i < 5; i++ {
		events = append(events, <-sub)
	}
	assert.Equal(t, stream.TypeStart, events[0].Type)
	assert.Equal(t, stream.TypeToolCall, events[1].Type)
	assert.Equal(t, stream.TypeToolResponse, events[2].Type)
	assert.Equal(t, stream.TypeContent, events[3].Type)
	assert.Equal(t, stream.TypeComplete, events[4].Type)

	_, msgs, err := rt.Convo.Get(ctx, sid)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(msgs), 3) // user turn, tool_call, tool_response, assistant reply
}

func TestRuntimeSendMessageBumpsAgentAndToolUsage(t *testing.T) {
	mock := &runner.MockRunner{Script: []runner.ScriptedTurn{
		{ToolName: "custom_calculator", ToolArgs: map[string]any{"expr": "2+2"}, FinalText: "4"},
	}}
	rt := newTestRuntime(t, mock)
	ctx := context.Background()

	agentID, err := rt.Agents.Create(ctx, &agent.Definition{
		Name:      "calc-agent",
		ToolNames: []string{"custom_calculator"},
		ModelID:   "echo",
	})
	require.NoError(t, err)

	sid, err := rt.StartConversation(ctx, "u1", agentID, "")
	require.NoError(t, err)

	require.NoError(t, rt.SendMessage(ctx, sid, "2+2", nil))

	def, err := rt.Agents.GetDefinition(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), def.UsageCount)
	assert.False(t, def.LastUsedAt.IsZero())

	entry, ok := rt.Tools.Get("custom_calculator")
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.Descriptor.UsageCount())
}

func TestRuntimeStartConversationUnknownAgentIsNotFound(t *testing.T) {
	rt := newTestRuntime(t, nil)
	ctx := context.Background()

	_, err := rt.StartConversation(ctx, "u1", "does-not-exist", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrNotFound)
}

func TestRuntimeStopAgentSignalsCancellation(t *testing.T) {
	rt := newTestRuntime(t, nil)
	ctx := context.Background()

	agentID, err := rt.Agents.Create(ctx, &agent.Definition{Name: "a", ModelID: "echo"})
	require.NoError(t, err)

	cancel := rt.CancelFor(agentID)
	rt.StopAgent(agentID)

	select {
	case <-cancel:
	default:
		t.Fatal("expected cancel channel to be closed after StopAgent")
	}
}

func TestRuntimeRecordsTurnAndSessionMetrics(t *testing.T) {
	metrics := obslog.New("orctest2")
	rt := orchestrator.New(orchestrator.Config{DSN: ":memory:", Runner: runner.EchoRunner{}, Metrics: metrics})
	ctx := context.Background()

	agentID, err := rt.Agents.Create(ctx, &agent.Definition{Name: "a", ModelID: "echo"})
	require.NoError(t, err)

	sid, err := rt.StartConversation(ctx, "u1", agentID, "")
	require.NoError(t, err)
	require.NoError(t, rt.SendMessage(ctx, sid, "hi", nil))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "orctest2_convo_sessions_started_total 1")
	assert.Contains(t, body, "orctest2_agent_turns_total")
}
