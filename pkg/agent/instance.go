package agent

import (
	"context"
	"iter"

	"github.com/agentkit/orchestrator/pkg/runner"
)

// Executable is what both a leaf Instance and a pkg/team composite
// satisfy: something that can drive one turn and yield a RawEvent
// stream. pkg/team depends on this interface (not on *Instance
// directly) so composites-of-composites (a sequential team whose last
// step is itself a parallel team) work without special-casing.
type Executable interface {
	ID() string
	Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error]
}

// Instance is the materialized, callable form of a leaf (non-team)
// AgentDefinition (spec §3 AgentInstance). It satisfies both Executable
// and runner.AgentView: the latter is what gets handed to the Runner
// driving it.
type Instance struct {
	id                string
	definitionVersion int
	systemPrompt      string
	tools             []runner.ToolBinding
	run               runner.Runner
}

func (i *Instance) ID() string                  { return i.id }
func (i *Instance) SystemPrompt() string        { return i.systemPrompt }
func (i *Instance) Tools() []runner.ToolBinding { return i.tools }

func (i *Instance) Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error] {
	return i.run.Run(ctx, i, session, turn, cancel)
}

// WithExtraTools returns a shallow copy of i with additional tool
// bindings appended -- used by pkg/team to expose remaining sub-agents
// as callable tools to a hierarchical team's coordinator, without
// mutating the cached coordinator instance shared by other callers.
func (i *Instance) WithExtraTools(extra []runner.ToolBinding) *Instance {
	cp := *i
	cp.tools = append(append([]runner.ToolBinding(nil), i.tools...), extra...)
	return &cp
}
