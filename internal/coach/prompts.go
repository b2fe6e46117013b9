package coach

import (
	"fmt"
	"strings"

	"example.com/quest/internal/domain"
)

const coachSystemPrompt = `You are a pragmatic career coach inside a gamified career quest. The participant completed a diagnostic assessment; you receive their profile, their current mission, and a summary of their recent progress.

You must output ONLY a JSON object with one field:
- cards: array of 3 to 6 advice cards, each an object with:
  - id: short kebab-case identifier
  - title: short imperative title
  - body: 1-3 sentences of concrete, personal advice
  - items: optional array of short checklist strings

Ground every card in the participant's declared weaknesses, strengths, and the specific mission. Never output generic filler. Output ONLY the JSON object, no markdown.`

func coachPrompt(profile domain.Profile, mission domain.MissionContext, summary ProgressSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Participant profile:\n- Declared role: %s\n- Assessed role: %s\n- Maturity: %s\n",
		profile.DeclaredRole, profile.RealRole, profile.Maturity)
	if len(profile.Strengths) > 0 {
		fmt.Fprintf(&b, "- Strengths: %s\n", strings.Join(profile.Strengths, ", "))
	}
	if len(profile.Weaknesses) > 0 {
		fmt.Fprintf(&b, "- Weaknesses: %s\n", strings.Join(profile.Weaknesses, ", "))
	}
	if len(profile.SkillGaps) > 0 {
		fmt.Fprintf(&b, "- Skill gaps: %s\n", strings.Join(profile.SkillGaps, ", "))
	}

	b.WriteString("\nCurrent mission:\n")
	fmt.Fprintf(&b, "- Phase %s, task %s: %s\n- Objective: %s\n",
		mission.PhaseID, mission.TaskID, mission.Title, mission.Objective)
	for _, action := range mission.Actions {
		fmt.Fprintf(&b, "- Action: %s\n", action)
	}

	fmt.Fprintf(&b, "\nProgress: level %d, %d XP, %d tasks completed.\n",
		summary.Level, summary.XP, summary.CompletedCount)
	for _, proof := range summary.Recent {
		fmt.Fprintf(&b, "- Recent proof for %s: score %d (%s)\n", proof.TaskID, proof.Score, proof.Label)
	}

	b.WriteString("\nGenerate the advice cards.")
	return b.String()
}

// staticCards is the provider-free fallback: always well-formed, never
// dependent on any external service.
func staticCards(summary ProgressSummary) []Card {
	focus := Card{
		ID:    "current-focus",
		Title: "Keep the streak going",
		Body:  "Small consistent actions beat occasional bursts. Pick the next mission task and finish it this week.",
		Items: []string{
			"Block 30 minutes in your calendar for the next task",
			"Do the action in the real world before polishing the proof",
		},
	}
	if len(summary.Recent) > 0 {
		last := summary.Recent[0]
		focus.Body = fmt.Sprintf(
			"Your last proof for %s scored %d (%s). Small consistent actions beat occasional bursts; pick the next task and finish it this week.",
			last.TaskID, last.Score, last.Label)
	}

	checklist := Card{
		ID:    "proof-quality",
		Title: "Make your proof undeniable",
		Body:  "Strong proof shows who, what, and when without extra explanation.",
		Items: []string{
			"Prefer a public link over a screenshot when one exists",
			"Keep names, dates, and context visible in screenshots",
			"One proof per task; make it specific to the mission objective",
		},
	}

	return []Card{focus, checklist}
}
