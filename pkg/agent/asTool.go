package agent

import (
	"context"

	"github.com/agentkit/orchestrator/pkg/runner"
)

// agentToolRef parses the "agent:<agent_id>" tool-name form (spec §3).
func agentToolRef(name string) (string, bool) {
	const prefix = "agent:"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):], true
	}
	return "", false
}

// AsToolBinding wraps a materialized sub-agent as a callable tool:
// invoking it runs one full turn on the sub-agent and folds its final
// text into the tool result, grounded on the teacher's agenttool.Call
// pattern of driving an isolated child turn and returning its text.
// Exported so pkg/team can reuse it for hierarchical delegate bindings
// without duplicating the call-and-collect-final-text logic.
func AsToolBinding(sub Executable) runner.ToolBinding {
	return runner.ToolBinding{
		Name:        "agent:" + sub.ID(),
		Description: "Delegates to agent " + sub.ID(),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request": map[string]any{"type": "string"},
			},
			"required": []string{"request"},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			req, _ := args["request"].(string)
			seq := sub.Run(ctx, runner.SessionContext{AgentID: sub.ID()}, runner.UserTurn{Text: req}, nil)
			var final string
			var callErr error
			seq(func(e runner.RawEvent, err error) bool {
				if err != nil {
					callErr = err
					return false
				}
				if e.Kind == runner.KindFinal {
					final = e.FinalText
				}
				if e.Kind == runner.KindError {
					callErr = &runner.RunnerError{Class: e.ErrClass, Message: e.ErrMessage}
					return false
				}
				return true
			})
			if callErr != nil {
				return nil, callErr
			}
			return map[string]any{"result": final}, nil
		},
	}
}
