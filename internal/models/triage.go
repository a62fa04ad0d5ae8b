package models

import (
	"fmt"
	"strings"
)

// Severity is the assessed distress tier.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCrisis   Severity = "crisis"
)

// Flow names the exercise flow the UI should present next.
type Flow string

const (
	FlowCheckIn       Flow = "check_in"
	FlowBreathing     Flow = "breathing"
	FlowGrounding     Flow = "grounding"
	FlowStabilize     Flow = "stabilize" // breathing followed by grounding
	FlowReframe       Flow = "reframe"
	FlowCrisisSupport Flow = "crisis_support"
	FlowMedicalCheck  Flow = "medical_check"
)

// IsRemoteSeverity reports whether a remote classifier may emit s.
// Crisis is only ever decided locally.
func IsRemoteSeverity(s Severity) bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// IsRemoteFlow reports whether a remote classifier may emit f.
// The safety flows are only ever decided locally.
func IsRemoteFlow(f Flow) bool {
	switch f {
	case FlowCheckIn, FlowBreathing, FlowGrounding, FlowStabilize, FlowReframe:
		return true
	default:
		return false
	}
}

// SeverityBand maps an intensity range to a severity tier and its flows.
type SeverityBand struct {
	Severity     Severity
	MinIntensity int
	MaxIntensity int
	Description  string
	// FallbackFlow is what the deterministic assessment suggests for the band.
	FallbackFlow Flow
	// GuidanceFlows are the flows the remote classifier is told to prefer.
	GuidanceFlows []Flow
}

// SeverityBands is the single source of the intensity thresholds, ordered
// from lowest to highest. Both the local fallback and the remote prompt
// guidance read it.
var SeverityBands = []SeverityBand{
	{
		Severity:      SeverityMild,
		MinIntensity:  1,
		MaxIntensity:  3,
		Description:   "Manageable anxiety",
		FallbackFlow:  FlowBreathing,
		GuidanceFlows: []Flow{FlowCheckIn, FlowBreathing},
	},
	{
		Severity:      SeverityModerate,
		MinIntensity:  4,
		MaxIntensity:  6,
		Description:   "Notable distress",
		FallbackFlow:  FlowBreathing,
		GuidanceFlows: []Flow{FlowBreathing, FlowGrounding},
	},
	{
		Severity:      SeveritySevere,
		MinIntensity:  7,
		MaxIntensity:  10,
		Description:   "High distress",
		FallbackFlow:  FlowStabilize,
		GuidanceFlows: []Flow{FlowStabilize},
	},
}

// BandFor returns the band for an intensity. Values below the lowest band
// clamp to it and values above the highest band clamp to that one.
func BandFor(intensity int) SeverityBand {
	for i := len(SeverityBands) - 1; i >= 0; i-- {
		if intensity >= SeverityBands[i].MinIntensity {
			return SeverityBands[i]
		}
	}
	return SeverityBands[0]
}

// Guidance renders a band as one line of classifier guidance,
// e.g. "mild (1-3): Manageable anxiety, suggest check_in or breathing".
func (b SeverityBand) Guidance() string {
	flows := make([]string, len(b.GuidanceFlows))
	for i, f := range b.GuidanceFlows {
		flows[i] = string(f)
	}
	return fmt.Sprintf("%s (%d-%d): %s, suggest %s", b.Severity, b.MinIntensity, b.MaxIntensity, b.Description, strings.Join(flows, " or "))
}

// Symptoms that bias the remote classifier toward a particular flow.
var (
	GroundingBiasSymptoms = []string{"Racing heart", "Tight chest"}
	BreathingBiasSymptoms = []string{"Racing thoughts"}
)

// TriageInput is the per-interaction user report fed to triage.
type TriageInput struct {
	Intensity   int      `json:"intensity"`
	Symptoms    []string `json:"symptoms"`
	Triggers    []string `json:"triggers"`
	UserMessage string   `json:"userMessage,omitempty"`
}

// TriageResult is the routing decision consumed by the UI.
type TriageResult struct {
	Severity         Severity `json:"severity"`
	SuggestedFlow    Flow     `json:"suggestedFlow"`
	IsCrisis         bool     `json:"isCrisis"`
	IsMedicalConcern bool     `json:"isMedicalConcern"`
	Reasoning        string   `json:"reasoning"`
}
