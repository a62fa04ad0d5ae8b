package triage

import (
	"context"
	"testing"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/testutil"
)

func TestTriage_CrisisSkipsRemote(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"severity":"mild","suggestedFlow":"check_in","reasoning":"ok"}`)
	c := NewCoordinator(stub)

	start := time.Now()
	result := c.Triage(context.Background(), models.TriageInput{
		Intensity:   2,
		UserMessage: "I want to die",
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("crisis triage took %v, expected a local decision", elapsed)
	}

	if result != CrisisResult() {
		t.Errorf("expected crisis result, got %+v", result)
	}
	if stub.Calls() != 0 {
		t.Errorf("remote called %d times on a crisis message", stub.Calls())
	}
}

func TestTriage_CrisisWinsOverMedical(t *testing.T) {
	stub := testutil.NewFailingRemote()
	c := NewCoordinator(stub)

	result, check := c.TriageWithCheck(context.Background(), models.TriageInput{
		Intensity:   9,
		UserMessage: "chest pain and I want to die",
	})
	if !result.IsCrisis || result.IsMedicalConcern {
		t.Errorf("expected crisis only, got %+v", result)
	}
	if !check.IsCrisis || !check.IsMedicalConcern {
		t.Errorf("expected scan to record both matches, got %+v", check)
	}
	if stub.Calls() != 0 {
		t.Errorf("remote called %d times", stub.Calls())
	}
}

func TestTriage_MedicalSkipsRemote(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"severity":"mild","suggestedFlow":"check_in","reasoning":"ok"}`)
	c := NewCoordinator(stub)

	result := c.Triage(context.Background(), models.TriageInput{
		Intensity:   4,
		UserMessage: "I have chest pain",
	})
	want := models.TriageResult{
		Severity:         models.SeveritySevere,
		SuggestedFlow:    models.FlowMedicalCheck,
		IsMedicalConcern: true,
		Reasoning:        ReasonMedical,
	}
	if result != want {
		t.Errorf("got %+v, want %+v", result, want)
	}
	if stub.Calls() != 0 {
		t.Errorf("remote called %d times on a medical message", stub.Calls())
	}
}

func TestTriage_FallbackOnRemoteFailure(t *testing.T) {
	tests := []struct {
		name      string
		intensity int
		severity  models.Severity
		flow      models.Flow
	}{
		{"low", 2, models.SeverityMild, models.FlowBreathing},
		{"moderate", 5, models.SeverityModerate, models.FlowBreathing},
		{"high", 8, models.SeveritySevere, models.FlowStabilize},
		{"below range", -4, models.SeverityMild, models.FlowBreathing},
		{"above range", 15, models.SeveritySevere, models.FlowStabilize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := testutil.NewFailingRemote()
			c := NewCoordinator(stub)
			result := c.Triage(context.Background(), models.TriageInput{Intensity: tt.intensity})

			if result.Severity != tt.severity || result.SuggestedFlow != tt.flow {
				t.Errorf("got %s/%s, want %s/%s", result.Severity, result.SuggestedFlow, tt.severity, tt.flow)
			}
			if result.IsCrisis || result.IsMedicalConcern {
				t.Errorf("fallback must not set safety flags: %+v", result)
			}
			if result.Reasoning != ReasonFallback {
				t.Errorf("unexpected reasoning %q", result.Reasoning)
			}
			if stub.Calls() != 1 {
				t.Errorf("expected exactly one remote attempt, got %d", stub.Calls())
			}
		})
	}
}

func TestTriage_RemoteResultReturnedExactly(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"severity":"moderate","suggestedFlow":"grounding","reasoning":"Physical symptoms present"}`)
	c := NewCoordinator(stub)

	in := models.TriageInput{Intensity: 5, Symptoms: []string{"Racing heart"}, Triggers: []string{"Work"}}
	result := c.Triage(context.Background(), in)
	want := models.TriageResult{
		Severity:      models.SeverityModerate,
		SuggestedFlow: models.FlowGrounding,
		Reasoning:     "Physical symptoms present",
	}
	if result != want {
		t.Errorf("got %+v, want %+v", result, want)
	}

	got := stub.LastTriage()
	if got == nil || got.Intensity != 5 || len(got.Symptoms) != 1 {
		t.Errorf("remote did not receive the input: %+v", got)
	}
}

func TestTriage_RemoteJSONEmbeddedInProse(t *testing.T) {
	reply := "Sure! Here is my assessment:\n```json\n{\"severity\": \"mild\", \"suggestedFlow\": \"check_in\", \"reasoning\": \"Low intensity {no symptoms}\"}\n```\nTake care."
	c := NewCoordinator(testutil.NewReplyingRemote(reply))

	result := c.Triage(context.Background(), models.TriageInput{Intensity: 2})
	if result.Severity != models.SeverityMild || result.SuggestedFlow != models.FlowCheckIn {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Reasoning != "Low intensity {no symptoms}" {
		t.Errorf("unexpected reasoning %q", result.Reasoning)
	}
}

func TestTriage_InvalidRemoteReplyFallsBack(t *testing.T) {
	replies := map[string]string{
		"no json":          "I think you are fine.",
		"bad severity":     `{"severity":"extreme","suggestedFlow":"breathing","reasoning":"x"}`,
		"crisis severity":  `{"severity":"crisis","suggestedFlow":"breathing","reasoning":"x"}`,
		"bad flow":         `{"severity":"moderate","suggestedFlow":"yoga","reasoning":"x"}`,
		"safety flow":      `{"severity":"moderate","suggestedFlow":"crisis_support","reasoning":"x"}`,
		"missing flow":     `{"severity":"moderate","reasoning":"x"}`,
		"missing reason":   `{"severity":"moderate","suggestedFlow":"breathing"}`,
		"wrong case":       `{"severity":"Moderate","suggestedFlow":"breathing","reasoning":"x"}`,
		"truncated object": `{"severity":"moderate","suggestedFlow":"breathing"`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			c := NewCoordinator(testutil.NewReplyingRemote(reply))
			result := c.Triage(context.Background(), models.TriageInput{Intensity: 8})
			if result != Fallback(8) {
				t.Errorf("expected fallback, got %+v", result)
			}
		})
	}
}

func TestTriage_TimeoutFallsBack(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"severity":"mild","suggestedFlow":"check_in","reasoning":"late"}`)
	stub.Delay = 2 * time.Second
	c := NewCoordinator(stub, WithTimeout(50*time.Millisecond))

	start := time.Now()
	result := c.Triage(context.Background(), models.TriageInput{Intensity: 8})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("triage did not honor the timeout, took %v", elapsed)
	}
	if result != Fallback(8) {
		t.Errorf("expected fallback after timeout, got %+v", result)
	}
}

// sleepingRemote answers after a fixed sleep without watching its context.
type sleepingRemote struct {
	sleep time.Duration
	reply string
}

func (r sleepingRemote) ClassifyTriage(ctx context.Context, in models.TriageInput) (string, error) {
	time.Sleep(r.sleep)
	return r.reply, nil
}

func TestTriage_TimeoutFallsBackWhenRemoteIgnoresContext(t *testing.T) {
	r := sleepingRemote{sleep: time.Second, reply: `{"severity":"mild","suggestedFlow":"check_in","reasoning":"late"}`}
	c := NewCoordinator(r, WithTimeout(50*time.Millisecond))

	start := time.Now()
	result := c.Triage(context.Background(), models.TriageInput{Intensity: 8})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("triage waited for a late remote, took %v", elapsed)
	}
	if result != Fallback(8) {
		t.Errorf("late reply must not be accepted, got %+v", result)
	}
}

func TestTriage_CanceledContextFallsBack(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"severity":"mild","suggestedFlow":"check_in","reasoning":"ok"}`)
	stub.Delay = time.Second
	c := NewCoordinator(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := c.Triage(ctx, models.TriageInput{Intensity: 3})
	if result != Fallback(3) {
		t.Errorf("expected fallback on canceled context, got %+v", result)
	}
}

func TestTriage_NilRemoteUsesFallback(t *testing.T) {
	c := NewCoordinator(nil)
	result := c.Triage(context.Background(), models.TriageInput{Intensity: 6})
	if result != Fallback(6) {
		t.Errorf("expected fallback, got %+v", result)
	}
}

func TestTriage_Idempotent(t *testing.T) {
	c := NewCoordinator(testutil.NewFailingRemote())
	in := models.TriageInput{Intensity: 7, Symptoms: []string{"Sweating"}}
	first := c.Triage(context.Background(), in)
	second := c.Triage(context.Background(), in)
	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestScreen(t *testing.T) {
	if _, _, ok := Screen(""); ok {
		t.Error("empty message must not match")
	}
	if _, check, ok := Screen("work was stressful"); ok || check.Any() {
		t.Errorf("benign message matched: %+v", check)
	}
	result, check, ok := Screen("I can't breathe")
	if !ok || result != MedicalResult() {
		t.Errorf("expected medical screen, got %+v", result)
	}
	if len(check.MatchedKeywords) == 0 {
		t.Error("expected matched keywords to be recorded")
	}
}
