package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/internal/orchestrator/rules"
)

// Base persona defining the companion's voice and the hard brevity rule.
const basePersona = `You are a warm, caring companion for %s. You speak naturally and conversationally, like a trusted friend who genuinely cares about their wellbeing.

## Your Personality
- Warm, patient, and reassuring
- Speak simply and clearly, avoiding jargon
- Use short, digestible sentences
- Be gently encouraging without being pushy
- Remember and reference personal details when relevant
- Never correct or argue; gently redirect if needed

## CRITICAL RULE - BREVITY
You MUST respond in ONE short sentence. Maximum 10-15 words. No exceptions.
- Never start with "That's a great question" or similar filler
- Never give multiple sentences
- Never explain or elaborate
- Just answer directly and warmly

GOOD: "Vancouver's rainy today, around 8 degrees."
GOOD: "I'm doing great, thanks for asking!"
BAD: "That's a wonderful question! I'm doing really well today..." (too long, filler)

## Current Context
- Time: %s
- Day: %s
`

const proactiveTemplate = `You are initiating a check-in with %s. This is a %s interaction.

Your goal: %s

Keep it natural and warm. Don't be overly formal or clinical. Just check in like a caring friend would.`

// Builder assembles system prompts for reactive and proactive interactions.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// BuildSystemPrompt composes the persona, personal context, and care context
// for a reactive conversation.
func (b *Builder) BuildSystemPrompt(profile *messages.UserProfile, plan *messages.CarePlan) string {
	name := displayName(profile)
	now := time.Now()

	var sb strings.Builder
	fmt.Fprintf(&sb, basePersona, name, now.Format("03:04 PM"), now.Format("Monday, January 2"))

	if profile != nil && len(profile.LifeDetails) > 0 {
		fmt.Fprintf(&sb, "\n## About %s\n%s\n", name, formatLifeDetails(profile.LifeDetails))
	}
	if plan != nil {
		if care := formatCarePlan(plan); care != "" {
			fmt.Fprintf(&sb, "\n## Care Information\n%s\n", care)
		}
	}

	return strings.TrimSpace(sb.String())
}

// BuildProactivePrompt composes the system prompt for a rule-initiated
// check-in.
func (b *Builder) BuildProactivePrompt(profile *messages.UserProfile, rule rules.Rule) string {
	name := displayName(profile)

	ruleType := map[string]string{
		rules.TypeTimeBased:  "scheduled check-in",
		rules.TypeBehavioral: "wellness check",
		rules.TypeCarePlan:   "care reminder",
	}[rule.Type]
	if ruleType == "" {
		ruleType = "friendly check-in"
	}

	goal := rule.Prompt
	if goal == "" {
		goal = "Check in and see how they're doing"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, proactiveTemplate, name, ruleType, goal)

	if profile != nil && len(profile.LifeDetails) > 0 {
		fmt.Fprintf(&sb, "\n\n## About %s\n%s", name, formatLifeDetails(profile.LifeDetails))
	}

	return strings.TrimSpace(sb.String())
}

func displayName(profile *messages.UserProfile) string {
	if profile == nil {
		return "Friend"
	}
	if profile.PreferredName != "" {
		return profile.PreferredName
	}
	if profile.Name != "" {
		return profile.Name
	}
	return "Friend"
}

func formatLifeDetails(details map[string]any) string {
	var lines []string

	if family, ok := details["family"]; ok && family != nil {
		lines = append(lines, fmt.Sprintf("Family: %v", family))
	}
	if hobbies, ok := details["hobbies"]; ok && hobbies != nil {
		lines = append(lines, fmt.Sprintf("Enjoys: %s", joinAny(hobbies)))
	}
	if background, ok := details["background"]; ok && background != nil {
		lines = append(lines, fmt.Sprintf("Background: %v", background))
	}
	if memories, ok := details["important_memories"]; ok && memories != nil {
		lines = append(lines, fmt.Sprintf("Important to them: %v", memories))
	}

	if len(lines) == 0 {
		return "No personal details available yet."
	}
	return strings.Join(lines, "\n")
}

func formatCarePlan(plan *messages.CarePlan) string {
	var lines []string

	if names := itemNames(plan.Medications, 3); names != "" {
		lines = append(lines, "Medications: "+names)
	}
	if names := itemNames(plan.Routines, 3); names != "" {
		lines = append(lines, "Daily routines: "+names)
	}

	return strings.Join(lines, "\n")
}

// itemNames summarizes the first few entries of a care plan list by their
// "name" field.
func itemNames(items []map[string]any, limit int) string {
	var names []string
	for i, item := range items {
		if i >= limit {
			break
		}
		if name, ok := item["name"].(string); ok && name != "" {
			names = append(names, name)
		} else {
			names = append(names, fmt.Sprintf("%v", item))
		}
	}
	return strings.Join(names, ", ")
}

func joinAny(v any) string {
	switch vals := v.(type) {
	case []any:
		parts := make([]string, 0, len(vals))
		for _, item := range vals {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(vals, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
