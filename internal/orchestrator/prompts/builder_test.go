package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/internal/orchestrator/rules"
)

func TestSystemPromptUsesPreferredName(t *testing.T) {
	b := NewBuilder()
	profile := &messages.UserProfile{Name: "Margaret Smith", PreferredName: "Maggie"}

	prompt := b.BuildSystemPrompt(profile, nil)
	assert.Contains(t, prompt, "caring companion for Maggie")
	assert.Contains(t, prompt, "CRITICAL RULE - BREVITY")
}

func TestSystemPromptFallsBackToFriend(t *testing.T) {
	b := NewBuilder()
	assert.Contains(t, b.BuildSystemPrompt(nil, nil), "caring companion for Friend")
	assert.Contains(t, b.BuildSystemPrompt(&messages.UserProfile{}, nil), "caring companion for Friend")
}

func TestSystemPromptIncludesLifeDetails(t *testing.T) {
	b := NewBuilder()
	profile := &messages.UserProfile{
		Name: "Margaret",
		LifeDetails: map[string]any{
			"family":  "two daughters",
			"hobbies": []any{"gardening", "bridge"},
		},
	}

	prompt := b.BuildSystemPrompt(profile, nil)
	assert.Contains(t, prompt, "## About Margaret")
	assert.Contains(t, prompt, "Family: two daughters")
	assert.Contains(t, prompt, "Enjoys: gardening, bridge")
}

func TestSystemPromptIncludesCarePlan(t *testing.T) {
	b := NewBuilder()
	plan := &messages.CarePlan{
		Medications: []map[string]any{{"name": "metformin"}, {"name": "lisinopril"}},
		Routines:    []map[string]any{{"name": "morning walk"}},
	}

	prompt := b.BuildSystemPrompt(&messages.UserProfile{Name: "Margaret"}, plan)
	assert.Contains(t, prompt, "## Care Information")
	assert.Contains(t, prompt, "Medications: metformin, lisinopril")
	assert.Contains(t, prompt, "Daily routines: morning walk")
}

func TestEmptyCarePlanOmitsSection(t *testing.T) {
	b := NewBuilder()
	prompt := b.BuildSystemPrompt(&messages.UserProfile{Name: "M"}, &messages.CarePlan{})
	assert.NotContains(t, prompt, "## Care Information")
}

func TestProactivePromptMapsRuleTypes(t *testing.T) {
	b := NewBuilder()
	profile := &messages.UserProfile{Name: "Margaret"}

	cases := map[string]string{
		rules.TypeTimeBased:  "scheduled check-in",
		rules.TypeBehavioral: "wellness check",
		rules.TypeCarePlan:   "care reminder",
		"something_else":     "friendly check-in",
	}
	for ruleType, label := range cases {
		prompt := b.BuildProactivePrompt(profile, rules.Rule{Type: ruleType, Prompt: "check in"})
		assert.Contains(t, prompt, label, "rule type %s", ruleType)
	}
}

func TestProactivePromptCarriesGoal(t *testing.T) {
	b := NewBuilder()
	rule := rules.Rule{Name: "morning_greeting", Type: rules.TypeTimeBased, Prompt: "Good morning! How are you feeling today?"}

	prompt := b.BuildProactivePrompt(&messages.UserProfile{Name: "Margaret"}, rule)
	assert.Contains(t, prompt, "Your goal: Good morning! How are you feeling today?")
	assert.True(t, strings.HasPrefix(prompt, "You are initiating a check-in with Margaret"))
}
