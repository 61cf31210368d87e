package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPromptIncludesReActEnvelopeOnlyWhenPlannerSet(t *testing.T) {
	d := &Definition{Name: "helper", Description: "a helper agent", Planner: PlannerPlanReAct}
	prompt := buildSystemPrompt(d)
	assert.Contains(t, prompt, "/*PLANNING*/")
	assert.Contains(t, prompt, "/*FINAL_ANSWER*/")

	d2 := &Definition{Name: "helper", Description: "a helper agent"}
	prompt2 := buildSystemPrompt(d2)
	assert.False(t, strings.Contains(prompt2, "/*PLANNING*/"))
}

func TestBuildSystemPromptIncludesPersonaFields(t *testing.T) {
	d := &Definition{
		Name:        "helper",
		Description: "answers questions",
		Personality: "friendly",
		Expertise:   []string{"math", "history"},
		Language:    "English",
	}
	prompt := buildSystemPrompt(d)
	assert.Contains(t, prompt, "answers questions")
	assert.Contains(t, prompt, "friendly")
	assert.Contains(t, prompt, "math, history")
	assert.Contains(t, prompt, "English")
}
