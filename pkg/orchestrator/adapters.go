package orchestrator

import (
	"context"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/runner"
	"github.com/agentkit/orchestrator/pkg/toolkit"
)

// toolRegistry is the narrow slice of *toolkit.Registry the adapter
// needs, kept as an interface so tests can substitute a fake without
// standing up a real Registry.
type toolRegistry interface {
	ResolveMany(names []string) (resolved map[string]*toolkit.Entry, missing []string)
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// toolResolverAdapter bridges pkg/toolkit.Registry to pkg/agent's
// narrow ToolResolver seam, so pkg/agent never imports pkg/toolkit's
// concrete types (spec §9 explicit-wiring, no cross-component import of
// concrete implementations outside the composition root).
type toolResolverAdapter struct {
	tools toolRegistry
}

func newToolResolver(tools toolRegistry) *toolResolverAdapter {
	return &toolResolverAdapter{tools: tools}
}

func (a *toolResolverAdapter) ResolveForAgent(names []string) ([]agent.ToolBindingSource, []string) {
	resolved, missing := a.tools.ResolveMany(names)
	out := make([]agent.ToolBindingSource, 0, len(resolved))
	for name, entry := range resolved {
		name := name
		out = append(out, agent.ToolBindingSource{
			Name:        name,
			Description: entry.Descriptor.Description,
			Schema:      entry.Descriptor.Schema,
			// Routed through Registry.Invoke (not entry.Impl.Call directly)
			// so a real turn bumps the tool's usage counter (spec §3/§4.1
			// usage_count) the same way a direct Invoke call would.
			Invoke: func(ctx context.Context, args map[string]any) (any, error) {
				return a.tools.Invoke(ctx, name, args)
			},
		})
	}
	return out, missing
}

// historyFromConvo adapts a conversation's message log into the
// role/content pairs a Runner expects as turn context. Kept in
// pkg/orchestrator (rather than pkg/convo) so pkg/convo stays a leaf
// package that never imports pkg/runner.
func historyFromConvo(msgs []*convo.Message) []runner.HistoryMessage {
	out := make([]runner.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Type != convo.MessageContent {
			continue
		}
		out = append(out, runner.HistoryMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
