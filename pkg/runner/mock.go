package runner

import (
	"context"
	"iter"
	"strings"
)

// EchoRunner is the simplest possible Runner: it emits "echo: " plus the
// user turn text as one partial-text delta and then as the final answer,
// with no tool calls. It exists
// for smoke tests and for local `orcctl` runs where no real model backend
// is configured.
type EchoRunner struct{}

func (EchoRunner) Run(ctx context.Context, view AgentView, session SessionContext, turn UserTurn, cancel <-chan struct{}) iter.Seq2[RawEvent, error] {
	return func(yield func(RawEvent, error) bool) {
		select {
		case <-ctx.Done():
			yield(RawEvent{}, ctx.Err())
			return
		case <-cancel:
			return
		default:
		}
		text := "echo: " + turn.Text
		if !yield(RawEvent{Kind: KindPartialText, Delta: text}, nil) {
			return
		}
		yield(RawEvent{Kind: KindFinal, FinalText: text}, nil)
	}
}

// ScriptedTurn is one queued response a MockRunner will hand back for the
// Nth call to Run. A ScriptedTurn with a non-empty ToolName causes the
// runner to invoke the matching bound tool (found by name in
// view.Tools()) before producing its final answer; on success the tool's
// result (its "result" field when it is a map, else the value itself,
// if it is a string) is appended to FinalText after a space, so tests
// can assert on it without needing a second scripted turn.
type ScriptedTurn struct {
	Thinking  string
	ToolName  string
	ToolArgs  map[string]any
	FinalText string
	Err       *RunnerError
}

// MockRunner plays back a fixed script of turns, one per call to Run,
// tracking how many times it has been invoked -- the same call-count
// bookkeeping pattern the teacher's MockLLMService uses for unit tests
// of agent/team control flow. Once the script is exhausted, Run falls
// back to echoing the turn text.
type MockRunner struct {
	Script    []ScriptedTurn
	callCount int
}

func (m *MockRunner) Run(ctx context.Context, view AgentView, session SessionContext, turn UserTurn, cancel <-chan struct{}) iter.Seq2[RawEvent, error] {
	idx := m.callCount
	m.callCount++

	return func(yield func(RawEvent, error) bool) {
		select {
		case <-ctx.Done():
			yield(RawEvent{}, ctx.Err())
			return
		case <-cancel:
			return
		default:
		}

		if idx >= len(m.Script) {
			text := "echo: " + turn.Text
			yield(RawEvent{Kind: KindFinal, FinalText: text}, nil)
			return
		}

		st := m.Script[idx]

		if st.Err != nil {
			yield(errorEvent(st.Err.Class, st.Err.Message), nil)
			return
		}

		if st.Thinking != "" {
			if !yield(RawEvent{Kind: KindThinking, Thought: st.Thinking}, nil) {
				return
			}
		}

		finalText := st.FinalText
		if st.ToolName != "" {
			binding := findBinding(view.Tools(), st.ToolName)
			if binding == nil {
				yield(errorEvent(ErrClassToolUnavailable, "mock runner: no binding for tool "+st.ToolName), nil)
				return
			}
			if !yield(RawEvent{Kind: KindToolInvocation, CallID: "mock-1", ToolName: st.ToolName, ToolArgs: st.ToolArgs}, nil) {
				return
			}
			result, err := binding.Invoke(ctx, st.ToolArgs)
			if err != nil {
				if !yield(RawEvent{Kind: KindToolResult, CallID: "mock-1", ToolName: st.ToolName, ToolErr: err.Error()}, nil) {
					return
				}
			} else {
				if !yield(RawEvent{Kind: KindToolResult, CallID: "mock-1", ToolName: st.ToolName, ToolData: result}, nil) {
					return
				}
				finalText = strings.TrimSpace(finalText + " " + formatToolResult(st.ToolName, result))
			}
		}

		yield(RawEvent{Kind: KindFinal, FinalText: finalText}, nil)
	}
}

func findBinding(bindings []ToolBinding, name string) *ToolBinding {
	for i := range bindings {
		if bindings[i].Name == name {
			return &bindings[i]
		}
	}
	return nil
}

func formatToolResult(name string, result any) string {
	if m, ok := result.(map[string]any); ok {
		if v, ok := m["result"]; ok {
			return toString(v)
		}
	}
	return toString(result)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
