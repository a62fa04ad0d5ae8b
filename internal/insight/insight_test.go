package insight

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/testutil"
)

func sampleRequest() models.InsightRequest {
	return models.InsightRequest{
		EpisodeCount: 4,
		AvgIntensity: "5.5",
		TopTriggers:  []models.TriggerCount{{Trigger: "Work", Count: 3}},
		TopTools:     []models.ToolStat{{Tool: models.ToolBoxBreathing, Count: 2, AvgHelpfulness: 4}},
	}
}

func TestGenerate_ZeroEpisodesSkipsRemote(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"insight":"x","experiment":"y"}`)
	g := NewGenerator(stub)

	res := g.GenerateWithSource(context.Background(), models.InsightRequest{EpisodeCount: 0})
	if res.Insight.Insight != EmptyInsight || res.Experiment != EmptyExperiment {
		t.Errorf("unexpected empty pair: %+v", res.Insight)
	}
	if res.Source != models.InsightSourceEmpty {
		t.Errorf("expected empty source, got %s", res.Source)
	}
	if stub.Calls() != 0 {
		t.Errorf("remote called %d times for zero episodes", stub.Calls())
	}

	if got := g.GenerateForStats(context.Background(), nil); got.Source != models.InsightSourceEmpty {
		t.Errorf("nil stats should be treated as empty, got %s", got.Source)
	}
}

func TestGenerate_RemoteSuccess(t *testing.T) {
	stub := testutil.NewReplyingRemote("Here you go: {\"insight\":\"You used breathing a lot.\",\"experiment\":\"Try box breathing before lunch.\"}")
	g := NewGenerator(stub)

	res := g.GenerateWithSource(context.Background(), sampleRequest())
	if res.Source != models.InsightSourceRemote {
		t.Fatalf("expected remote source, got %s", res.Source)
	}
	if res.Insight.Insight != "You used breathing a lot." || res.Experiment != "Try box breathing before lunch." {
		t.Errorf("unexpected insight %+v", res.Insight)
	}
	if last := stub.LastInsight(); last == nil || last.AvgIntensity != "5.5" {
		t.Errorf("remote did not receive the request: %+v", last)
	}
}

func TestGenerate_FallbackEmbedsCountAndIntensity(t *testing.T) {
	g := NewGenerator(testutil.NewFailingRemote())
	got := g.Generate(context.Background(), sampleRequest())

	if !strings.Contains(got.Insight, "4 episodes") || !strings.Contains(got.Insight, "5.5") {
		t.Errorf("fallback insight missing count or intensity: %q", got.Insight)
	}
	if got.Experiment != "Keep using Box breathing - it seems to be helping you." {
		t.Errorf("unexpected experiment %q", got.Experiment)
	}
}

func TestFallback_SingularAndNoTools(t *testing.T) {
	got := Fallback(models.InsightRequest{EpisodeCount: 1, AvgIntensity: "7.0"})
	want := "You logged 1 episode this week with an average intensity of 7.0. You're building awareness of your patterns."
	if got.Insight != want {
		t.Errorf("got %q, want %q", got.Insight, want)
	}
	if got.Experiment != DefaultExperiment {
		t.Errorf("unexpected experiment %q", got.Experiment)
	}
}

func TestGenerate_InvalidRepliesFallBack(t *testing.T) {
	replies := map[string]string{
		"prose":            "You did great this week!",
		"missing field":    `{"insight":"Nice work."}`,
		"empty experiment": `{"insight":"Nice work.","experiment":"  "}`,
		"clinical":         `{"insight":"This looks like an anxiety disorder.","experiment":"Rest."}`,
		"acronym":          `{"insight":"Classic GAD pattern.","experiment":"Rest."}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			g := NewGenerator(testutil.NewReplyingRemote(reply))
			res := g.GenerateWithSource(context.Background(), sampleRequest())
			if res.Source != models.InsightSourceFallback {
				t.Errorf("expected fallback, got %s: %+v", res.Source, res.Insight)
			}
		})
	}
}

func TestGenerate_TimeoutFallsBack(t *testing.T) {
	stub := testutil.NewReplyingRemote(`{"insight":"late","experiment":"late"}`)
	stub.Delay = 2 * time.Second
	g := NewGenerator(stub, WithTimeout(50*time.Millisecond))

	res := g.GenerateWithSource(context.Background(), sampleRequest())
	if res.Source != models.InsightSourceFallback {
		t.Errorf("expected fallback after timeout, got %s", res.Source)
	}
}

func TestContainsClinicalLanguage(t *testing.T) {
	if _, ok := ContainsClinicalLanguage("You noticed your patterns and tried breathing."); ok {
		t.Error("benign text flagged as clinical")
	}
	if _, ok := ContainsClinicalLanguage("Gadgets can be distracting."); ok {
		t.Error("acronyms must match whole words only")
	}
	if term, ok := ContainsClinicalLanguage("Consider a Diagnosis"); !ok || term != "diagnos" {
		t.Errorf("expected diagnos, got %q %v", term, ok)
	}
}
