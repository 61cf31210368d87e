package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/runner"
)

// DefaultDeadline is the wall-clock budget for one turn when Handler.Deadline
// is zero (spec §4.7 "a turn that runs longer than 120s by default is
// cancelled with error(timeout)").
const DefaultDeadline = 120 * time.Second

// Handler drives one agent turn end to end: it consumes the Executable's
// RawEvent stream, applies the content accumulator/final-echo dedup
// rule, persists assistant/tool messages through a convo.Manager, and
// publishes the public Event taxonomy to a Broker. Grounded on the shape
// of the teacher's pkg/server/events.go eventProcessor loop, trimmed
// from A2A task/artifact bookkeeping to the spec's flat event list.
type Handler struct {
	Convo    *convo.Manager
	Broker   *Broker
	Deadline time.Duration

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// NewHandler builds a Handler wired to convo and broker.
func NewHandler(c *convo.Manager, b *Broker) *Handler {
	return &Handler{Convo: c, Broker: b, now: time.Now}
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *Handler) deadline() time.Duration {
	if h.Deadline > 0 {
		return h.Deadline
	}
	return DefaultDeadline
}

// RunTurn drives exec for one turn bound to sessionID, publishing every
// public Event to h.Broker and persisting assistant/tool messages
// through h.Convo as they are produced. It blocks until the turn
// completes, is cancelled, or times out; callers that want streaming
// delivery should call Broker.Subscribe(sessionID) before invoking
// RunTurn (or concurrently with it -- RunTurn does not require a
// subscriber to exist).
func (h *Handler) RunTurn(ctx context.Context, exec agent.Executable, sessionID string, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) {
	publish := func(evt Event) {
		evt.SessionID = sessionID
		evt.CreatedAt = h.clock()
		h.Broker.Publish(sessionID, evt)
	}

	publish(Event{Type: TypeStart})

	turnCtx, stop := context.WithTimeout(ctx, h.deadline())
	defer stop()

	var acc strings.Builder
	var finalText string
	haveFinal := false
	var turnErr *Event

	next, stopSeq := iterPull(exec.Run(turnCtx, session, turn, cancel))
	defer stopSeq()

	for {
		evt, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			kind := ErrKindRunnerInternal
			if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
				kind = ErrKindTimeout
			}
			turnErr = &Event{Type: TypeError, Content: err.Error(), Metadata: map[string]any{"err_kind": kind}}
			break
		}
		meta := originMeta(evt.OriginAgentID)

		switch evt.Kind {
		case runner.KindPartialText:
			acc.WriteString(evt.Delta)
			publish(Event{Type: TypeContent, Content: evt.Delta, Metadata: meta})

		case runner.KindThinking:
			publish(Event{Type: TypeThinking, Content: evt.Thought, Metadata: meta})
			h.persist(turnCtx, sessionID, convo.Message{
				Role: convo.RoleAssistant, Type: convo.MessageThinking, Content: evt.Thought,
			})

		case runner.KindToolInvocation:
			publish(Event{Type: TypeToolCall, Metadata: toolCallMeta(evt, meta)})
			h.persist(turnCtx, sessionID, convo.Message{
				Role: convo.RoleAssistant, Type: convo.MessageToolCall,
				ToolName: evt.ToolName, ToolArgs: evt.ToolArgs, ToolCallID: evt.CallID,
			})

		case runner.KindToolResult:
			resultMeta, content := toolResultPayload(evt)
			for k, v := range meta {
				resultMeta[k] = v
			}
			publish(Event{Type: TypeToolResponse, Content: content, Metadata: resultMeta})
			h.persist(turnCtx, sessionID, convo.Message{
				Role: convo.RoleTool, Type: convo.MessageToolResponse,
				ToolName: evt.ToolName, ToolCallID: evt.CallID, Content: content,
			})

		case runner.KindFinal:
			haveFinal = true
			suppressed, suffix := finalSuffix(acc.String(), evt.FinalText)
			if !suppressed && suffix != "" {
				publish(Event{Type: TypeContent, Content: suffix, Metadata: meta})
			}
			finalText = evt.FinalText

		case runner.KindError:
			turnErr = &Event{Type: TypeError, Content: evt.ErrMessage, Metadata: withMeta(meta, "err_kind", errKindFromClass(evt.ErrClass))}
		}

		if turnErr != nil {
			break
		}
	}

	if turnErr == nil {
		if cancelled(cancel) {
			turnErr = &Event{Type: TypeError, Content: "turn cancelled", Metadata: map[string]any{"err_kind": ErrKindCancelled}}
		} else if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			turnErr = &Event{Type: TypeError, Content: "turn exceeded deadline", Metadata: map[string]any{"err_kind": ErrKindTimeout}}
		}
	}

	if turnErr != nil {
		publish(*turnErr)
	}

	content := acc.String()
	if haveFinal {
		content = finalText
	}
	if content != "" {
		h.persist(turnCtx, sessionID, convo.Message{
			Role: convo.RoleAssistant, Type: convo.MessageContent, Content: content,
		})
	}
	publish(Event{Type: TypeComplete, Content: content})
}

func cancelled(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}

func originMeta(originAgentID string) map[string]any {
	if originAgentID == "" {
		return nil
	}
	return map[string]any{"origin_agent_id": originAgentID}
}

func toolCallMeta(evt runner.RawEvent, meta map[string]any) map[string]any {
	out := map[string]any{
		"tool_name": evt.ToolName,
		"call_id":   evt.CallID,
		"args":      evt.ToolArgs,
	}
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// toolResultPayload attempts to parse a string ToolData as JSON,
// forwarding the parsed value in metadata on success and the raw text
// as content on failure; a non-string ToolData (already structured) is
// forwarded as-is (spec §4.7 "tool_result payload attempted as JSON").
func toolResultPayload(evt runner.RawEvent) (map[string]any, string) {
	meta := map[string]any{"tool_name": evt.ToolName, "call_id": evt.CallID}
	if evt.ToolErr != "" {
		meta["error"] = evt.ToolErr
		return meta, evt.ToolErr
	}
	switch v := evt.ToolData.(type) {
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			meta["result"] = parsed
			return meta, v
		}
		return meta, v
	case nil:
		return meta, ""
	default:
		meta["result"] = v
		b, err := json.Marshal(v)
		if err != nil {
			return meta, ""
		}
		return meta, string(b)
	}
}

func (h *Handler) persist(ctx context.Context, sessionID string, msg convo.Message) {
	if h.Convo == nil {
		return
	}
	msg.IsComplete = true
	if _, err := h.Convo.Append(ctx, sessionID, &msg); err != nil {
		logPersistFailure(sessionID, err)
	}
}
