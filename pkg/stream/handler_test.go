package stream_test

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/runner"
	"github.com/agentkit/orchestrator/pkg/stream"
)

// scriptedExecutable is a minimal agent.Executable test double that
// replays a fixed slice of RawEvents, grounded on pkg/team's
// fakeExecutable test double.
type scriptedExecutable struct {
	id     string
	events []runner.RawEvent
	delay  time.Duration
}

func (s *scriptedExecutable) ID() string { return s.id }

func (s *scriptedExecutable) Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error] {
	return func(yield func(runner.RawEvent, error) bool) {
		for _, e := range s.events {
			if s.delay > 0 {
				select {
				case <-time.After(s.delay):
				case <-ctx.Done():
					yield(runner.RawEvent{}, ctx.Err())
					return
				case <-cancel:
					return
				}
			}
			select {
			case <-cancel:
				return
			default:
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func collect(t *testing.T, sub <-chan stream.Event, n int) []stream.Event {
	t.Helper()
	out := make([]stream.Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case evt := <-sub:
			out = append(out, evt)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d/%d, got %d so far: %+v", i+1, n, len(out), out)
		}
	}
	return out
}

func newHandler(t *testing.T) (*stream.Handler, *convo.Manager, *stream.Broker) {
	t.Helper()
	cm := convo.NewManager(noopStore{})
	broker := stream.NewBroker()
	return stream.NewHandler(cm, broker), cm, broker
}

// noopStore is a degraded-mode convo.Store double: every call is a no-op
// returning nil, matching pkg/store's documented degraded behavior.
type noopStore struct{}

func (noopStore) SaveConversation(context.Context, *convo.Session) error            { return nil }
func (noopStore) GetConversation(context.Context, string) (*convo.Session, error)   { return nil, nil }
func (noopStore) ListConversationsByAgent(context.Context, string, int, int) ([]*convo.Session, error) {
	return nil, nil
}
func (noopStore) UpdateConversation(context.Context, *convo.Session) error { return nil }
func (noopStore) DeleteConversation(context.Context, string) error         { return nil }
func (noopStore) AppendMessage(context.Context, *convo.Message) error      { return nil }
func (noopStore) ListMessagesBySession(context.Context, string, bool) ([]*convo.Message, error) {
	return nil, nil
}
func (noopStore) CountMessagesBySession(context.Context, string) (int, error) { return 0, nil }
func (noopStore) DeleteMessagesBySession(context.Context, string) error       { return nil }

func TestRunTurnEmitsStartContentComplete(t *testing.T) {
	h, cm, broker := newHandler(t)
	ctx := context.Background()

	sid, err := cm.Start(ctx, "u1", "a1", "")
	require.NoError(t, err)

	exec := &scriptedExecutable{id: "a1", events: []runner.RawEvent{
		{Kind: runner.KindPartialText, Delta: "Hel"},
		{Kind: runner.KindPartialText, Delta: "lo"},
		{Kind: runner.KindFinal, FinalText: "Hello"},
	}}

	sub, unsub := broker.Subscribe(sid)
	defer unsub()

	h.RunTurn(ctx, exec, sid, runner.SessionContext{SessionID: sid, AgentID: "a1"}, runner.UserTurn{Text: "hi"}, nil)

	events := collect(t, sub, 4)
	assert.Equal(t, stream.TypeStart, events[0].Type)
	assert.Equal(t, stream.TypeContent, events[1].Type)
	assert.Equal(t, "Hel", events[1].Content)
	assert.Equal(t, stream.TypeContent, events[2].Type)
	assert.Equal(t, "lo", events[2].Content)
	assert.Equal(t, stream.TypeComplete, events[3].Type)
	assert.Equal(t, "Hello", events[3].Content)

	_, msgs, err := cm.Get(ctx, sid)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
}

func TestRunTurnSuppressesLongFinalEcho(t *testing.T) {
	h, _, broker := newHandler(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 120; i++ {
		long += "0123456789"
	}
	require.Greater(t, len(long), 1000)

	exec := &scriptedExecutable{id: "a1", events: []runner.RawEvent{
		{Kind: runner.KindPartialText, Delta: long},
		{Kind: runner.KindFinal, FinalText: long},
	}}

	sub, unsub := broker.Subscribe("s1")
	defer unsub()

	h.RunTurn(ctx, exec, "s1", runner.SessionContext{SessionID: "s1"}, runner.UserTurn{Text: "hi"}, nil)

	events := collect(t, sub, 3)
	assert.Equal(t, stream.TypeStart, events[0].Type)
	assert.Equal(t, stream.TypeContent, events[1].Type)
	assert.Equal(t, long, events[1].Content)
	assert.Equal(t, stream.TypeComplete, events[2].Type)
	assert.Equal(t, long, events[2].Content)
}

func TestRunTurnEmitsPartialFinalSuffixWhenShort(t *testing.T) {
	h, _, broker := newHandler(t)
	ctx := context.Background()

	exec := &scriptedExecutable{id: "a1", events: []runner.RawEvent{
		{Kind: runner.KindPartialText, Delta: "Hel"},
		{Kind: runner.KindFinal, FinalText: "Hello world"},
	}}

	sub, unsub := broker.Subscribe("s1")
	defer unsub()

	h.RunTurn(ctx, exec, "s1", runner.SessionContext{SessionID: "s1"}, runner.UserTurn{Text: "hi"}, nil)

	events := collect(t, sub, 4)
	assert.Equal(t, "Hel", events[1].Content)
	assert.Equal(t, "lo world", events[2].Content)
	assert.Equal(t, stream.TypeComplete, events[3].Type)
	assert.Equal(t, "Hello world", events[3].Content)
}

func TestRunTurnToolCallAndResponseArePersistedImmediately(t *testing.T) {
	h, cm, broker := newHandler(t)
	ctx := context.Background()

	sid, err := cm.Start(ctx, "u1", "a1", "")
	require.NoError(t, err)

	exec := &scriptedExecutable{id: "a1", events: []runner.RawEvent{
		{Kind: runner.KindToolInvocation, CallID: "c1", ToolName: "calculator", ToolArgs: map[string]any{"expr": "2+2"}},
		{Kind: runner.KindToolResult, CallID: "c1", ToolName: "calculator", ToolData: map[string]any{"result": 4.0}},
		{Kind: runner.KindFinal, FinalText: "4"},
	}}

	sub, unsub := broker.Subscribe(sid)
	defer unsub()

	h.RunTurn(ctx, exec, sid, runner.SessionContext{SessionID: sid, AgentID: "a1"}, runner.UserTurn{Text: "what is 2+2"}, nil)

	events := collect(t, sub, 5)
	assert.Equal(t, stream.TypeToolCall, events[1].Type)
	assert.Equal(t, "calculator", events[1].Metadata["tool_name"])
	assert.Equal(t, stream.TypeToolResponse, events[2].Type)
	assert.Equal(t, stream.TypeContent, events[3].Type)
	assert.Equal(t, stream.TypeComplete, events[4].Type)

	_, msgs, err := cm.Get(ctx, sid)
	require.NoError(t, err)
	require.Len(t, msgs, 3) // tool_call, tool_response, final content
	assert.Equal(t, convo.MessageToolCall, msgs[0].Type)
	assert.Equal(t, convo.MessageToolResponse, msgs[1].Type)
	assert.Equal(t, convo.MessageContent, msgs[2].Type)
}

func TestRunTurnCancelledMidStreamEmitsErrorThenComplete(t *testing.T) {
	h, _, broker := newHandler(t)
	ctx := context.Background()
	cancel := make(chan struct{})

	exec := &scriptedExecutable{id: "a1", delay: 50 * time.Millisecond, events: []runner.RawEvent{
		{Kind: runner.KindPartialText, Delta: "a"},
		{Kind: runner.KindPartialText, Delta: "b"},
		{Kind: runner.KindPartialText, Delta: "c"},
		{Kind: runner.KindFinal, FinalText: "abc"},
	}}

	sub, unsub := broker.Subscribe("s1")
	defer unsub()

	go func() {
		time.Sleep(60 * time.Millisecond)
		close(cancel)
	}()

	h.RunTurn(ctx, exec, "s1", runner.SessionContext{SessionID: "s1"}, runner.UserTurn{Text: "hi"}, cancel)

	var sawError, sawComplete bool
	for {
		select {
		case evt := <-sub:
			if evt.Type == stream.TypeError {
				sawError = true
				assert.Equal(t, stream.ErrKindCancelled, evt.Metadata["err_kind"])
			}
			if evt.Type == stream.TypeComplete {
				sawComplete = true
			}
		case <-time.After(500 * time.Millisecond):
			assert.True(t, sawError, "expected an error(cancelled) event")
			assert.True(t, sawComplete, "expected a trailing complete event")
			return
		}
	}
}

func TestRunTurnDeadlineExceededEmitsTimeout(t *testing.T) {
	h, _, broker := newHandler(t)
	h.Deadline = 30 * time.Millisecond
	ctx := context.Background()

	exec := &scriptedExecutable{id: "a1", delay: 200 * time.Millisecond, events: []runner.RawEvent{
		{Kind: runner.KindPartialText, Delta: "slow"},
		{Kind: runner.KindFinal, FinalText: "slow"},
	}}

	sub, unsub := broker.Subscribe("s1")
	defer unsub()

	h.RunTurn(ctx, exec, "s1", runner.SessionContext{SessionID: "s1"}, runner.UserTurn{Text: "hi"}, nil)

	var sawTimeout bool
	for {
		select {
		case evt := <-sub:
			if evt.Type == stream.TypeError && evt.Metadata["err_kind"] == stream.ErrKindTimeout {
				sawTimeout = true
			}
		case <-time.After(500 * time.Millisecond):
			assert.True(t, sawTimeout, "expected an error(timeout) event")
			return
		}
	}
}

func TestRunTurnOriginAgentIDPassesThroughMetadata(t *testing.T) {
	h, _, broker := newHandler(t)
	ctx := context.Background()

	exec := &scriptedExecutable{id: "team1", events: []runner.RawEvent{
		{Kind: runner.KindPartialText, Delta: "hi", OriginAgentID: "sub1"},
		{Kind: runner.KindFinal, FinalText: "hi", OriginAgentID: "sub1"},
	}}

	sub, unsub := broker.Subscribe("s1")
	defer unsub()

	h.RunTurn(ctx, exec, "s1", runner.SessionContext{SessionID: "s1"}, runner.UserTurn{Text: "hi"}, nil)

	events := collect(t, sub, 2)
	assert.Equal(t, "sub1", events[1].Metadata["origin_agent_id"])
}
