// Package agent implements the Agent Registry (spec C3): the durable
// AgentDefinition store plus the materialization path that turns a
// definition into a runnable AgentInstance. It owns cycle detection for
// agent-as-tool references and hands team-shaped definitions off to
// pkg/team for composition.
package agent

import "time"

// AgentType selects how a definition's instance is built: a single leaf
// driven by a Runner, or one of the team composition kinds handed to
// pkg/team.
type AgentType string

const (
	TypeStandard     AgentType = "standard"
	TypeReAct        AgentType = "react"
	TypeSequential   AgentType = "sequential"
	TypeParallel     AgentType = "parallel"
	TypeHierarchical AgentType = "hierarchical"
	TypeLoop         AgentType = "loop"
)

// IsTeam reports whether t requires sub_agent_ids and composition via
// pkg/team rather than a single leaf instance.
func (t AgentType) IsTeam() bool {
	switch t {
	case TypeSequential, TypeParallel, TypeHierarchical, TypeLoop:
		return true
	default:
		return false
	}
}

// Planner selects the prompting strategy layered on top of the persona.
type Planner string

const (
	PlannerNone      Planner = ""
	PlannerPlanReAct Planner = "PlanReActPlanner"
	PlannerBuiltIn   Planner = "BuiltInPlanner"
)

// Definition is the durable description of an agent (spec §3
// AgentDefinition). It is the unit persisted by pkg/store and owned by
// this package's Registry.
type Definition struct {
	AgentID  string
	Name     string
	Version  int
	IsActive bool

	Description         string
	Personality         string
	Expertise           []string
	CommunicationStyle  string
	Language            string
	CustomInstructions  string

	ModelID         string
	Temperature     float64
	MaxOutputTokens int
	AgentType       AgentType
	Planner         Planner

	SubAgentIDs []string
	ToolNames   []string

	UsageCount int64
	CreatedAt  time.Time
	LastUsedAt time.Time
	Metadata   map[string]any
}

// Clone returns a deep-enough copy for safe mutation by patch/update
// operations without racing readers holding the cached definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Expertise = append([]string(nil), d.Expertise...)
	cp.SubAgentIDs = append([]string(nil), d.SubAgentIDs...)
	cp.ToolNames = append([]string(nil), d.ToolNames...)
	if d.Metadata != nil {
		cp.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Patch carries partial updates for UpdateConfig; a non-nil pointer
// field replaces the corresponding Definition field, nil leaves it
// untouched ("null value clears a field" maps to an explicit zero
// value being supplied, not to a nil pointer).
type Patch struct {
	AgentType *AgentType
	Planner   *Planner
	ToolNames *[]string
}
