// Package team implements the Team Composer (spec C4): given an ordered
// sequence of resolved agent.Executable sub-instances and a composition
// kind, it produces a single Executable obeying the sequential /
// parallel / hierarchical / loop semantics of spec §4.4.
package team

import (
	"context"
	"fmt"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/runner"
)

// MaxLoopIterations is the hard ceiling on loop re-entries before the
// composite emits a LoopExhausted error event and terminates (spec
// §4.4, "configured, default 8").
const MaxLoopIterations = 8

// Composer builds composite Executables. It satisfies agent.Composer
// structurally (same method signature) without importing pkg/agent's
// interface type, which is what breaks the otherwise-circular
// pkg/agent <-> pkg/team dependency.
type Composer struct {
	// MaxLoopIterations overrides the package default when non-zero.
	MaxLoopIterations int
}

func NewComposer() *Composer { return &Composer{} }

func (c *Composer) maxLoopIterations() int {
	if c.MaxLoopIterations > 0 {
		return c.MaxLoopIterations
	}
	return MaxLoopIterations
}

// Compose builds a single Executable from subs according to kind.
func (c *Composer) Compose(kind agent.AgentType, agentID string, subs []agent.Executable) (agent.Executable, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("team: %q has no sub-instances to compose", agentID)
	}
	switch kind {
	case agent.TypeSequential:
		return &sequential{id: agentID, subs: subs}, nil
	case agent.TypeParallel:
		return &parallel{id: agentID, subs: subs}, nil
	case agent.TypeHierarchical:
		return newHierarchical(agentID, subs)
	case agent.TypeLoop:
		return &loop{id: agentID, subs: subs, maxIterations: c.maxLoopIterations()}, nil
	default:
		return nil, fmt.Errorf("team: %q has non-team agent_type %q", agentID, kind)
	}
}

// tagOrigin stamps an event with its originating sub-agent id unless the
// event already carries one (e.g. forwarded up through nested
// composites, whose own Run already tagged it -- the innermost origin
// wins, per spec §4.7.7 "each forwarded event carries an origin_agent_id
// field").
func tagOrigin(e runner.RawEvent, subID string) runner.RawEvent {
	if e.OriginAgentID == "" {
		e.OriginAgentID = subID
	}
	return e
}

// textAccumulator scans events already yielded in a sub-run for the
// text a subsequent sequential/loop step should see as its input
// context. It prefers the final(text) event; if the sub-run produced no
// final event (e.g. it errored), the accumulated partial deltas are
// used instead.
type textAccumulator struct {
	acc   string
	final string
	saw   bool
}

func (t *textAccumulator) observe(e runner.RawEvent) {
	switch e.Kind {
	case runner.KindPartialText:
		t.acc += e.Delta
	case runner.KindFinal:
		t.final = e.FinalText
		t.saw = true
	}
}

func (t *textAccumulator) text() string {
	if t.saw {
		return t.final
	}
	return t.acc
}

// drive runs sub.Run to completion, forwarding every event (tagged with
// sub's id) to yield, and returns the step's resulting text plus
// whether an error event was observed.
func drive(ctx context.Context, sub agent.Executable, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}, yield func(runner.RawEvent, error) bool) (text string, errored bool, stopped bool) {
	seq := sub.Run(ctx, session, turn, cancel)
	var acc textAccumulator
	seq(func(e runner.RawEvent, err error) bool {
		if err != nil {
			if !yield(runner.RawEvent{}, err) {
				stopped = true
			}
			errored = true
			return false
		}
		acc.observe(e)
		if e.Kind == runner.KindError {
			errored = true
		}
		if !yield(tagOrigin(e, sub.ID()), nil) {
			stopped = true
			return false
		}
		return true
	})
	return acc.text(), errored, stopped
}
