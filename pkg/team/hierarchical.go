package team

import (
	"context"
	"fmt"
	"iter"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/runner"
)

// hierarchical wraps a coordinator leaf instance with extra tool
// bindings representing each remaining sub-instance, so the
// coordinator's own Runner decides whether and how many times to
// delegate (spec §4.4 hierarchical). Delegated calls surface through
// the coordinator's own RawEvent stream as tool_invocation/tool_result
// -- no separate tagging is needed since the coordinator's Runner is
// already the one driving them.
type hierarchical struct {
	id          string
	coordinator agent.Executable
}

func (h *hierarchical) ID() string { return h.id }

func (h *hierarchical) Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error] {
	return h.coordinator.Run(ctx, session, turn, cancel)
}

// newHierarchical builds the coordinator-plus-delegate-tools composite.
// The first sub is the coordinator and must be a leaf *agent.Instance
// (the only Executable kind that exposes WithExtraTools); a composite
// coordinator (a team nested as the first member of another team) has
// no uniform way to receive extra tool bindings and is rejected here
// with a composition error rather than silently dropping delegation.
func newHierarchical(agentID string, subs []agent.Executable) (agent.Executable, error) {
	coordinator, ok := subs[0].(*agent.Instance)
	if !ok {
		return nil, fmt.Errorf("team: %q hierarchical coordinator must be a leaf agent, got %T", agentID, subs[0])
	}

	// The coordinator may not invoke itself (it is not among rest) and a
	// delegate may not, in turn, invoke the coordinator -- both are
	// enforced earlier by pkg/agent's cycle detection during
	// materialization, since a hierarchical team's sub_agent_ids can
	// never include the team's own agent_id and agent-as-tool cycles are
	// checked independently of team shape.
	rest := subs[1:]
	extraTools := make([]runner.ToolBinding, 0, len(rest))
	for _, sub := range rest {
		extraTools = append(extraTools, agent.AsToolBinding(sub))
	}

	return &hierarchical{id: agentID, coordinator: coordinator.WithExtraTools(extraTools)}, nil
}
