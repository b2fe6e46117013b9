package proof

import (
	"fmt"
	"strings"

	"example.com/quest/internal/domain"
)

const scoringSystemPrompt = `You are a career-quest proof evaluator. Participants submit evidence of completed real-world career actions; you judge whether the evidence credibly shows the mission was done.

You must output ONLY a JSON object with these exact fields:
- score: integer 0-100 (how credibly the evidence shows the mission was completed)
- label: "Strong", "OK" or "Weak"
- tips: array of 1-3 short, actionable suggestions to make the proof stronger
- signals: array of short machine-readable strings naming what you observed

Judge only against the mission described. Generic screenshots unrelated to the mission score low. Output ONLY the JSON object, no markdown, no explanation.`

const extractionSystemPrompt = `You are an OCR engine. Extract ALL visible text from the image, preserving line breaks. Output only the extracted text, nothing else. If the image contains no readable text, output an empty response.`

func missionBlock(mission domain.MissionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mission phase: %s\nMission task: %s\nTitle: %s\nObjective: %s\n",
		mission.PhaseID, mission.TaskID, mission.Title, mission.Objective)
	if len(mission.Actions) > 0 {
		b.WriteString("Expected actions:\n")
		for _, action := range mission.Actions {
			fmt.Fprintf(&b, "- %s\n", action)
		}
	}
	return b.String()
}

// textScoringPrompt conditions the text evaluator on the mission plus the
// participant hint and OCR-extracted text.
func textScoringPrompt(mission domain.MissionContext, hint, extracted string) string {
	var b strings.Builder
	b.WriteString(missionBlock(mission))
	b.WriteString("\nThe participant submitted a screenshot as proof.\n")
	if hint != "" {
		fmt.Fprintf(&b, "Participant's note: %s\n", hint)
	}
	if extracted != "" {
		fmt.Fprintf(&b, "Text extracted from the screenshot:\n%s\n", extracted)
	}
	b.WriteString("\nEvaluate this proof against the mission.")
	return b.String()
}

// visionScoringPrompt conditions the vision evaluator on the mission; the
// image travels alongside as an inline part.
func visionScoringPrompt(mission domain.MissionContext, hint string) string {
	var b strings.Builder
	b.WriteString(missionBlock(mission))
	b.WriteString("\nThe attached image is the participant's proof screenshot.\n")
	if hint != "" {
		fmt.Fprintf(&b, "Participant's note: %s\n", hint)
	}
	b.WriteString("\nEvaluate this proof against the mission.")
	return b.String()
}
