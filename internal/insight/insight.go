// Package insight turns a week of episode statistics into a short
// encouraging narrative and one small experiment to try.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/remote"
)

// Texts returned when nothing was logged this week.
const (
	EmptyInsight    = "No episodes recorded this week. That's great progress!"
	EmptyExperiment = "Try noting moments when you felt calm and what contributed to that feeling."
)

// DefaultExperiment is the fallback experiment when no tool was used.
const DefaultExperiment = "Try the box breathing exercise next time you feel anxious."

// clinicalTerms are rejected in remote text. Matching is case-insensitive
// except for acronyms, which are matched as whole words.
var (
	clinicalTerms   = []string{"disorder", "diagnos", "medication", "symptom of", "psychiatr", "prescri"}
	clinicalAcronym = []string{"GAD", "PTSD", "OCD"}
)

// Remote summarizes a week and returns the raw reply text.
type Remote interface {
	SummarizeWeek(ctx context.Context, req models.InsightRequest) (string, error)
}

// Opts holds generator configuration.
type Opts struct {
	Timeout time.Duration
}

// Option configures a Generator.
type Option func(*Opts)

// WithTimeout bounds the wait for the remote classifier.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Generator produces weekly insights. It is safe for concurrent use.
type Generator struct {
	remote  Remote
	timeout time.Duration
}

// NewGenerator creates a generator. A nil remote always uses the fallback.
func NewGenerator(r Remote, opts ...Option) *Generator {
	cfg := Opts{Timeout: remote.DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Generator{remote: r, timeout: cfg.Timeout}
}

// Result is an insight plus where its text came from.
type Result struct {
	models.Insight
	Source models.InsightSource
}

// Generate produces the insight for a remote-shaped request.
func (g *Generator) Generate(ctx context.Context, req models.InsightRequest) models.Insight {
	return g.GenerateWithSource(ctx, req).Insight
}

// GenerateForStats produces the insight for computed stats. Nil stats mean
// no episodes.
func (g *Generator) GenerateForStats(ctx context.Context, stats *models.WeeklyStats) Result {
	if stats == nil {
		return g.GenerateWithSource(ctx, models.NewInsightRequest(models.WeeklyStats{}))
	}
	return g.GenerateWithSource(ctx, models.NewInsightRequest(*stats))
}

// GenerateWithSource is Generate that also reports the text's origin.
func (g *Generator) GenerateWithSource(ctx context.Context, req models.InsightRequest) Result {
	if req.EpisodeCount <= 0 {
		return Result{
			Insight: models.Insight{Insight: EmptyInsight, Experiment: EmptyExperiment},
			Source:  models.InsightSourceEmpty,
		}
	}

	if g.remote == nil {
		slog.Debug("Generator.Generate: no remote classifier configured, using fallback", "episodes", req.EpisodeCount)
		return Result{Insight: Fallback(req), Source: models.InsightSourceFallback}
	}

	out, err := g.summarize(ctx, req)
	if err != nil {
		slog.Warn("Generator.Generate: remote summary failed, using fallback",
			"error", err, "kind", remote.Kind(err), "episodes", req.EpisodeCount)
		return Result{Insight: Fallback(req), Source: models.InsightSourceFallback}
	}
	slog.Debug("Generator.Generate: remote summary succeeded", "episodes", req.EpisodeCount)
	return Result{Insight: out, Source: models.InsightSourceRemote}
}

// Fallback is the templated insight used when the remote cannot answer.
func Fallback(req models.InsightRequest) models.Insight {
	noun := "episodes"
	if req.EpisodeCount == 1 {
		noun = "episode"
	}
	experiment := DefaultExperiment
	if len(req.TopTools) > 0 && strings.TrimSpace(req.TopTools[0].Tool) != "" {
		experiment = fmt.Sprintf("Keep using %s - it seems to be helping you.", req.TopTools[0].Tool)
	}
	return models.Insight{
		Insight: fmt.Sprintf("You logged %d %s this week with an average intensity of %s. You're building awareness of your patterns.",
			req.EpisodeCount, noun, req.AvgIntensity),
		Experiment: experiment,
	}
}

type remoteReply struct {
	Insight    *string `json:"insight"`
	Experiment *string `json:"experiment"`
}

func validateReply(r *remoteReply) error {
	if err := remote.RequireString("insight", r.Insight); err != nil {
		return err
	}
	if err := remote.RequireString("experiment", r.Experiment); err != nil {
		return err
	}
	if term, ok := ContainsClinicalLanguage(*r.Insight + " " + *r.Experiment); ok {
		return fmt.Errorf("clinical language %q in reply", term)
	}
	return nil
}

func (g *Generator) summarize(ctx context.Context, req models.InsightRequest) (models.Insight, error) {
	call := func(ctx context.Context) (string, error) {
		return g.remote.SummarizeWeek(ctx, req)
	}
	reply, err := remote.Do(ctx, g.timeout, call, validateReply)
	if err != nil {
		return models.Insight{}, err
	}
	return models.Insight{Insight: *reply.Insight, Experiment: *reply.Experiment}, nil
}

// ContainsClinicalLanguage reports the first clinical or diagnostic term
// found in text.
func ContainsClinicalLanguage(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, term := range clinicalTerms {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		for _, acr := range clinicalAcronym {
			if word == acr {
				return acr, true
			}
		}
	}
	return "", false
}
