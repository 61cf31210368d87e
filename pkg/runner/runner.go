// Package runner implements the Runner Adapter (spec C6): the boundary
// between a materialized agent instance and whatever drives its turns --
// an LLM call loop, a scripted test double, or a thin echo. Runners do not
// execute tools themselves; they call the bound Callables handed to them
// via AgentView.Tools and surface the outcome as RawEvents. Everything
// downstream (team composition, the streaming handler) consumes the same
// RawEvent vocabulary regardless of which Runner produced it.
package runner

import (
	"context"
	"fmt"
	"iter"
)

// RawEventKind tags the payload carried by a RawEvent.
type RawEventKind int

const (
	KindPartialText RawEventKind = iota
	KindThinking
	KindToolInvocation
	KindToolResult
	KindFinal
	KindError
)

func (k RawEventKind) String() string {
	switch k {
	case KindPartialText:
		return "partial_text"
	case KindThinking:
		return "thinking"
	case KindToolInvocation:
		return "tool_invocation"
	case KindToolResult:
		return "tool_result"
	case KindFinal:
		return "final"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// RawEvent is the unit of output a Runner yields while driving one agent
// turn. Only the fields relevant to Kind are populated. OriginAgentID is
// left empty by the Runner itself; team composition fills it in when
// forwarding a sub-instance's events through a composite (spec 4.7.7).
type RawEvent struct {
	Kind          RawEventKind
	OriginAgentID string

	Delta string // KindPartialText

	Thought string // KindThinking

	CallID   string         // KindToolInvocation / KindToolResult
	ToolName string         // KindToolInvocation / KindToolResult
	ToolArgs map[string]any // KindToolInvocation
	ToolData any            // KindToolResult: return value of the bound Callable
	ToolErr  string         // KindToolResult: non-empty if the tool call failed

	FinalText string // KindFinal

	ErrClass   string // KindError: AgentNotFound, ToolUnavailable, ...
	ErrMessage string // KindError
}

// ToolBinding is what an agent instance exposes to a Runner for a single
// resolved tool: enough to advertise it to a planner and enough to
// actually invoke it. The Runner never talks to pkg/toolkit directly --
// it only ever sees the bindings an AgentView hands it, which keeps
// Runner implementations agnostic to where a tool (or sub-agent-as-tool)
// actually lives.
type ToolBinding struct {
	Name        string
	Description string
	Schema      map[string]any
	Invoke      func(ctx context.Context, args map[string]any) (any, error)
}

// AgentView is the minimal read-only surface a Runner needs to drive a
// turn for one materialized agent instance.
type AgentView interface {
	ID() string
	SystemPrompt() string
	Tools() []ToolBinding
}

// HistoryMessage is one prior turn surfaced to a Runner as context.
type HistoryMessage struct {
	Role    string // "user" | "assistant" | "tool"
	Content string
}

// SessionContext carries the conversation state a Runner may want to
// ground a turn in. It is supplied by pkg/convo via the orchestrator and
// is opaque to the Runner beyond History.
type SessionContext struct {
	SessionID string
	AgentID   string
	History   []HistoryMessage
}

// UserTurn is the new input driving this invocation.
type UserTurn struct {
	Text     string
	Metadata map[string]any
}

// Runner drives one turn of one agent instance, yielding a RawEvent
// stream. Implementations are pull-based: the returned iter.Seq2 is
// single-consumer and must not be shared across goroutines. cancel, when
// closed, asks the Runner to stop emitting further events at its next
// opportunity; ctx cancellation does the same thing more forcefully.
type Runner interface {
	Run(ctx context.Context, view AgentView, session SessionContext, turn UserTurn, cancel <-chan struct{}) iter.Seq2[RawEvent, error]
}

// Error classes surfaced via RawEvent.ErrClass. These mirror the failure
// classes spec.md assigns to C3/C6 so the streaming handler and HTTP
// surface can map them to the right status code without string-sniffing.
const (
	ErrClassAgentNotFound       = "AgentNotFound"
	ErrClassToolUnavailable     = "ToolUnavailable"
	ErrClassCyclicAgentTool     = "CyclicAgentTool"
	ErrClassSubAgentUnavailable = "SubAgentUnavailable"
	ErrClassRunnerFailure       = "RunnerFailure"
	ErrClassLoopExhausted       = "LoopExhausted"
)

// RunnerError wraps an error class with a human message, the shape
// carried over the wire as a KindError RawEvent's ErrClass/ErrMessage.
type RunnerError struct {
	Class   string
	Message string
}

func (e *RunnerError) Error() string {
	return fmt.Sprintf("runner: %s: %s", e.Class, e.Message)
}

func errorEvent(class, message string) RawEvent {
	return RawEvent{Kind: KindError, ErrClass: class, ErrMessage: message}
}
