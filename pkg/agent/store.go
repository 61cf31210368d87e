package agent

import "context"

// DefinitionStore is the narrow persistence seam the Registry writes
// through to (spec C2's Agents operations). pkg/store implements this;
// the Registry never imports pkg/store directly so it stays agnostic to
// whether persistence is a real database or degraded-mode no-ops.
type DefinitionStore interface {
	SaveAgent(ctx context.Context, d *Definition) error
	GetAgent(ctx context.Context, agentID string) (*Definition, error)
	ListAgents(ctx context.Context, activeOnly bool, limit, offset int) ([]*Definition, error)
	UpdateAgent(ctx context.Context, d *Definition) error
	DeleteAgent(ctx context.Context, agentID string) error
	BumpAgentUsage(ctx context.Context, agentID string) error
}

// ToolResolver is the narrow seam onto the Tool Registry (C1) that
// materialization needs: resolve_many and nothing else.
type ToolResolver interface {
	ResolveForAgent(names []string) (bindings []ToolBindingSource, missing []string)
}

// ToolBindingSource is the shape ToolResolver hands back for each
// resolved tool name -- enough to build a runner.ToolBinding without
// pkg/agent importing pkg/toolkit's concrete types.
type ToolBindingSource struct {
	Name        string
	Description string
	Schema      map[string]any
	Invoke      func(ctx context.Context, args map[string]any) (any, error)
}
