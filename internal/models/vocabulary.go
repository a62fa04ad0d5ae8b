package models

// DefaultTriggers are the trigger categories offered by the check-in screen.
var DefaultTriggers = []string{
	"Work",
	"Social",
	"Health",
	"Family",
	"Money",
	"Future",
	"Past",
	"Uncertainty",
	"Conflict",
	"Performance",
	"Other",
}

// DefaultSymptoms are the physical sensations offered by the check-in screen.
var DefaultSymptoms = []string{
	"Racing heart",
	"Tight chest",
	"Shallow breathing",
	"Sweating",
	"Trembling",
	"Nausea",
	"Dizziness",
	"Racing thoughts",
	"Feeling detached",
	"Restlessness",
}

// Tool names as recorded in Episode.ToolsUsed.
const (
	ToolBoxBreathing     = "Box breathing"
	ToolPacedBreathing   = "Paced breathing"
	ToolGrounding54321   = "5-4-3-2-1 grounding"
	ToolMuscleRelaxation = "Muscle relaxation"
	ToolThoughtReframe   = "Thought reframe"
)

// DefaultTools are the coping tools the app can record as used.
var DefaultTools = []string{
	ToolBoxBreathing,
	ToolPacedBreathing,
	"Physiological sigh",
	ToolGrounding54321,
	ToolMuscleRelaxation,
	ToolThoughtReframe,
	"Worry postponement",
	"Safe memory",
	"Mantra",
	"Walk",
	"Water",
	"Talk to someone",
}
