package triage

import (
	"slices"

	"github.com/BTreeMap/CalmPipe/internal/models"
)

// MaxNextSteps caps the suggestion list.
const MaxNextSteps = 4

// NextStepRequest describes where the user is after an exercise.
type NextStepRequest struct {
	Intensity         int      `json:"intensity"`
	ToolsUsed         []string `json:"toolsUsed"`
	MinutesSinceStart float64  `json:"minutesSinceStart"`
}

// SuggestNextSteps proposes what to try after the first exercise. It is
// rule-based and never consults the remote classifier.
func SuggestNextSteps(req NextStepRequest) []string {
	var suggestions []string

	if req.Intensity > 5 {
		if !slices.Contains(req.ToolsUsed, models.ToolBoxBreathing) && !slices.Contains(req.ToolsUsed, models.ToolPacedBreathing) {
			suggestions = append(suggestions, "Try a breathing exercise")
		}
		if !slices.Contains(req.ToolsUsed, models.ToolGrounding54321) {
			suggestions = append(suggestions, "Try grounding (5-4-3-2-1)")
		}
	}

	if req.Intensity <= 5 || len(req.ToolsUsed) >= 2 {
		suggestions = append(suggestions,
			"Drink some water",
			"Take a short walk",
			"Message someone you trust",
		)
	}

	if req.MinutesSinceStart > 10 && req.Intensity > 3 {
		suggestions = append(suggestions, "It's okay to take a break")
	}

	if len(suggestions) < 3 {
		suggestions = append(suggestions, "Do a small, easy task", "Listen to calming music")
	}

	if len(suggestions) > MaxNextSteps {
		suggestions = suggestions[:MaxNextSteps]
	}
	return suggestions
}
