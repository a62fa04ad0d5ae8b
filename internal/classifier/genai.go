// Package classifier provides the remote classifier implementations used by
// triage, insight and reframe: one backed by a language model and one that
// forwards to an HTTP classifier service.
package classifier

import (
	"context"

	"github.com/BTreeMap/CalmPipe/internal/genai"
	"github.com/BTreeMap/CalmPipe/internal/models"
)

// Sampling settings per request kind.
const (
	TriageTemperature  = 0.3
	InsightTemperature = 0.7
	ReframeTemperature = 0.7
	MaxTokens          = 500
)

// Generator is the language-model surface GenAI needs.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (string, error)
}

// GenAI classifies by prompting a language model.
type GenAI struct {
	gen Generator
}

// NewGenAI wraps a generator, typically a *genai.Client.
func NewGenAI(gen Generator) *GenAI {
	return &GenAI{gen: gen}
}

// ClassifyTriage implements triage.Remote.
func (g *GenAI) ClassifyTriage(ctx context.Context, in models.TriageInput) (string, error) {
	return g.gen.Generate(ctx, genai.Request{
		SystemPrompt: triageSystemPrompt,
		UserPrompt:   TriagePrompt(in),
		Temperature:  TriageTemperature,
		MaxTokens:    MaxTokens,
	})
}

// SummarizeWeek implements insight.Remote.
func (g *GenAI) SummarizeWeek(ctx context.Context, req models.InsightRequest) (string, error) {
	return g.gen.Generate(ctx, genai.Request{
		SystemPrompt: insightSystemPrompt,
		UserPrompt:   InsightPrompt(req),
		Temperature:  InsightTemperature,
		MaxTokens:    MaxTokens,
	})
}

// Reframe implements reframe.Remote.
func (g *GenAI) Reframe(ctx context.Context, req models.ReframeRequest) (string, error) {
	return g.gen.Generate(ctx, genai.Request{
		SystemPrompt: reframeSystemPrompt,
		UserPrompt:   ReframePrompt(req),
		Temperature:  ReframeTemperature,
		MaxTokens:    MaxTokens,
	})
}
