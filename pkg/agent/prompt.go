package agent

import "strings"

// promptSlots mirrors the teacher's fixed-contract slot composition for
// system prompts: each strategy/persona field fills one named slot and
// the final prompt is the non-empty slots joined with blank lines. Using
// named slots (rather than one format string) keeps the ReAct envelope
// and persona fields independently testable.
type promptSlots struct {
	SystemRole            string
	Persona               string
	ReasoningInstructions string
	CommunicationStyle    string
	Additional            string
}

func (s promptSlots) render() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{s.SystemRole, s.Persona, s.ReasoningInstructions, s.CommunicationStyle, s.Additional} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, "\n\n")
}

// reActEnvelope is the fixed instruction block injected for
// Planner == PlannerPlanReAct (spec §4.3 step 3). The bracketed phase
// names are the contract the Runner's ReAct loop expects to see echoed
// back in model output so it can parse phases.
const reActEnvelope = `Respond using the following phases, each on its own line(s):
/*PLANNING*/ outline the steps needed to answer the request.
/*ACTION*/ name the tool to call and its arguments, if one is needed.
/*REASONING*/ interpret the tool result (or explain why no tool was needed).
/*FINAL_ANSWER*/ give the final answer to the user. This phase is mandatory exactly once.`

// buildSystemPrompt composes a leaf agent's system prompt from its
// persona fields and, when applicable, the ReAct instruction envelope.
// Grounded on the teacher's PromptSlots.Merge/render composition in
// pkg/reasoning/prompt_slots.go, adapted from a strategy-supplied slot
// set to a persona-field slot set since this module has no pluggable
// reasoning-strategy layer.
func buildSystemPrompt(d *Definition) string {
	slots := promptSlots{
		SystemRole:         personaRole(d),
		Persona:            personaDetails(d),
		CommunicationStyle: d.CommunicationStyle,
		Additional:         d.CustomInstructions,
	}
	if d.Planner == PlannerPlanReAct {
		slots.ReasoningInstructions = reActEnvelope
	}
	return slots.render()
}

func personaRole(d *Definition) string {
	if d.Description == "" {
		return "You are " + d.Name + "."
	}
	return "You are " + d.Name + ". " + d.Description
}

func personaDetails(d *Definition) string {
	var b strings.Builder
	if d.Personality != "" {
		b.WriteString("Personality: " + d.Personality + "\n")
	}
	if len(d.Expertise) > 0 {
		b.WriteString("Areas of expertise: " + strings.Join(d.Expertise, ", ") + "\n")
	}
	if d.Language != "" {
		b.WriteString("Respond in: " + d.Language + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
