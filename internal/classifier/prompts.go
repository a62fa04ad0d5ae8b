package classifier

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/CalmPipe/internal/models"
)

const triageSystemPrompt = "You are a mental health triage assistant. You assess the current anxiety level and recommend one coping exercise. You never diagnose."

const insightSystemPrompt = "You are a supportive anxiety coach. Generate a brief weekly insight and one small experiment suggestion."

const reframeSystemPrompt = "You are a gentle CBT coach helping someone reframe an anxious thought."

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, " or ")
}

// TriagePrompt renders the triage user prompt. Band guidance is read from
// models.SeverityBands.
func TriagePrompt(in models.TriageInput) string {
	var b strings.Builder
	b.WriteString("Based on the following information, assess the anxiety severity and recommend an intervention.\n\n")
	b.WriteString("User state:\n")
	fmt.Fprintf(&b, "- Anxiety intensity: %d/10\n", in.Intensity)
	fmt.Fprintf(&b, "- Physical symptoms: %s\n", joinOr(in.Symptoms, "None reported"))
	fmt.Fprintf(&b, "- Triggers: %s\n", joinOr(in.Triggers, "None identified"))
	if in.UserMessage != "" {
		fmt.Fprintf(&b, "- User message: %q\n", in.UserMessage)
	}

	b.WriteString("\nRespond with ONLY a JSON object (no markdown, no explanation):\n")
	b.WriteString("{\n")
	b.WriteString(`  "severity": "mild" | "moderate" | "severe",` + "\n")
	b.WriteString(`  "suggestedFlow": "breathing" | "grounding" | "stabilize" | "reframe" | "check_in",` + "\n")
	b.WriteString(`  "reasoning": "Brief explanation (1 sentence)"` + "\n")
	b.WriteString("}\n\n")

	b.WriteString("Guidelines:\n")
	for _, band := range models.SeverityBands {
		fmt.Fprintf(&b, "- %s\n", band.Guidance())
	}
	fmt.Fprintf(&b, "- If symptoms include %s, lean toward %s\n", quoteList(models.GroundingBiasSymptoms), models.FlowGrounding)
	fmt.Fprintf(&b, "- If symptoms include %s, lean toward %s\n", quoteList(models.BreathingBiasSymptoms), models.FlowBreathing)
	b.WriteString("- Never diagnose, only assess current state")
	return b.String()
}

// InsightPrompt renders the weekly insight user prompt.
func InsightPrompt(req models.InsightRequest) string {
	triggers := make([]string, len(req.TopTriggers))
	for i, t := range req.TopTriggers {
		triggers[i] = fmt.Sprintf("%s (%dx)", t.Trigger, t.Count)
	}
	tools := make([]string, len(req.TopTools))
	for i, t := range req.TopTools {
		tools[i] = fmt.Sprintf("%s (used %dx, %.1f/5 helpful)", t.Tool, t.Count, t.AvgHelpfulness)
	}

	var b strings.Builder
	b.WriteString("This week's data:\n")
	fmt.Fprintf(&b, "- Total episodes: %d\n", req.EpisodeCount)
	fmt.Fprintf(&b, "- Average intensity: %s/10\n", req.AvgIntensity)
	fmt.Fprintf(&b, "- Top triggers: %s\n", joinOr(triggers, "None identified"))
	fmt.Fprintf(&b, "- Most helpful tools: %s\n", joinOr(tools, "None recorded"))
	b.WriteString(`
Respond with ONLY a JSON object:
{
  "insight": "One encouraging observation about patterns (1-2 sentences, warm tone)",
  "experiment": "One tiny, specific experiment to try next week (1 sentence, actionable)"
}

Guidelines:
- Be warm and non-judgmental
- Focus on what's working, not what's wrong
- Make the experiment very small and doable
- Never diagnose or use clinical language
- If tools helped, celebrate that
- Examples of experiments: "Try box breathing before your first work meeting", "Notice if afternoon anxiety correlates with skipping lunch"`)
	return b.String()
}

// ReframePrompt renders the thought reframe user prompt.
func ReframePrompt(req models.ReframeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Situation: %s\n", req.Situation)
	fmt.Fprintf(&b, "Automatic thought: %q\n", req.AutomaticThought)
	fmt.Fprintf(&b, "Emotion felt: %s\n", req.Emotion)
	b.WriteString(`
Respond with ONLY a JSON object:
{
  "validation": "Brief validation of their feeling (1 sentence, warm)",
  "balancedThought": "A more balanced alternative thought (1-2 sentences)"
}

Guidelines:
- First validate their emotion - it's real and makes sense
- Don't dismiss or minimize their concern
- Offer a gentler, more balanced perspective
- Use "What if..." or "It's also possible that..." framing
- Keep it short and conversational
- Never say their thought is "wrong" or "irrational"`)
	return b.String()
}
