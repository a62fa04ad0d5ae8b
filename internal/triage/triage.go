// Package triage decides the next step of the panic-button flow.
//
// The local safety scan always runs first and short-circuits on a match. Only
// when it finds nothing is the remote classifier consulted, and any remote
// failure collapses into a deterministic intensity-based assessment. Triage
// therefore always produces a result.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/remote"
	"github.com/BTreeMap/CalmPipe/internal/safety"
)

// Reasoning strings for locally decided results.
const (
	ReasonCrisis   = "Crisis keywords detected"
	ReasonMedical  = "Medical concern keywords detected"
	ReasonFallback = "Fallback assessment based on intensity"
)

// Remote classifies a triage input and returns the raw reply text.
type Remote interface {
	ClassifyTriage(ctx context.Context, in models.TriageInput) (string, error)
}

// Opts holds coordinator configuration.
type Opts struct {
	Timeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Opts)

// WithTimeout bounds the wait for the remote classifier.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Coordinator produces triage results. It holds no per-call state and is
// safe for concurrent use.
type Coordinator struct {
	remote  Remote
	timeout time.Duration
}

// NewCoordinator creates a coordinator. A nil remote means every call that
// passes the safety scan goes straight to the fallback.
func NewCoordinator(r Remote, opts ...Option) *Coordinator {
	cfg := Opts{Timeout: remote.DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Coordinator{remote: r, timeout: cfg.Timeout}
}

// CrisisResult is returned whenever crisis keywords match.
func CrisisResult() models.TriageResult {
	return models.TriageResult{
		Severity:         models.SeverityCrisis,
		SuggestedFlow:    models.FlowCrisisSupport,
		IsCrisis:         true,
		IsMedicalConcern: false,
		Reasoning:        ReasonCrisis,
	}
}

// MedicalResult is returned when only medical keywords match.
func MedicalResult() models.TriageResult {
	return models.TriageResult{
		Severity:         models.SeveritySevere,
		SuggestedFlow:    models.FlowMedicalCheck,
		IsCrisis:         false,
		IsMedicalConcern: true,
		Reasoning:        ReasonMedical,
	}
}

// Fallback is the deterministic assessment used when the remote classifier
// cannot answer. Out-of-range intensities clamp to the outer bands.
func Fallback(intensity int) models.TriageResult {
	band := models.BandFor(intensity)
	return models.TriageResult{
		Severity:      band.Severity,
		SuggestedFlow: band.FallbackFlow,
		Reasoning:     ReasonFallback,
	}
}

// Screen runs only the local safety gate. ok is false when the message is
// empty or matches nothing.
func Screen(message string) (models.TriageResult, safety.Result, bool) {
	if message == "" {
		return models.TriageResult{}, safety.Result{MatchedKeywords: []string{}}, false
	}
	check := safety.Check(message)
	switch {
	case check.IsCrisis:
		return CrisisResult(), check, true
	case check.IsMedicalConcern:
		return MedicalResult(), check, true
	default:
		return models.TriageResult{}, check, false
	}
}

// Triage runs the full decision pipeline for one input.
func (c *Coordinator) Triage(ctx context.Context, in models.TriageInput) models.TriageResult {
	result, _ := c.TriageWithCheck(ctx, in)
	return result
}

// TriageWithCheck is Triage that also returns the safety scan outcome so
// callers can audit-log it.
func (c *Coordinator) TriageWithCheck(ctx context.Context, in models.TriageInput) (models.TriageResult, safety.Result) {
	result, check, matched := Screen(in.UserMessage)
	if matched {
		slog.Info("Coordinator.Triage: safety match, skipping remote classifier",
			"crisis", check.IsCrisis, "medical", check.IsMedicalConcern, "matched_keywords", check.MatchedKeywords)
		return result, check
	}

	if c.remote == nil {
		slog.Debug("Coordinator.Triage: no remote classifier configured, using fallback", "intensity", in.Intensity)
		return Fallback(in.Intensity), check
	}

	remoteResult, err := c.classify(ctx, in)
	if err != nil {
		slog.Warn("Coordinator.Triage: remote classification failed, using fallback",
			"error", err, "kind", remote.Kind(err), "intensity", in.Intensity)
		return Fallback(in.Intensity), check
	}
	slog.Debug("Coordinator.Triage: remote classification succeeded",
		"severity", remoteResult.Severity, "flow", remoteResult.SuggestedFlow)
	return remoteResult, check
}

// remoteReply is the untrusted shape of a classifier reply. Pointer fields
// distinguish absent keys from zero values.
type remoteReply struct {
	Severity      *string `json:"severity"`
	SuggestedFlow *string `json:"suggestedFlow"`
	Reasoning     *string `json:"reasoning"`
}

func validateReply(r *remoteReply) error {
	if r.Severity == nil {
		return fmt.Errorf("missing field %q", "severity")
	}
	if !models.IsRemoteSeverity(models.Severity(*r.Severity)) {
		return fmt.Errorf("invalid severity %q", *r.Severity)
	}
	if r.SuggestedFlow == nil {
		return fmt.Errorf("missing field %q", "suggestedFlow")
	}
	if !models.IsRemoteFlow(models.Flow(*r.SuggestedFlow)) {
		return fmt.Errorf("invalid suggestedFlow %q", *r.SuggestedFlow)
	}
	return remote.RequireString("reasoning", r.Reasoning)
}

func (c *Coordinator) classify(ctx context.Context, in models.TriageInput) (models.TriageResult, error) {
	call := func(ctx context.Context) (string, error) {
		return c.remote.ClassifyTriage(ctx, in)
	}
	reply, err := remote.Do(ctx, c.timeout, call, validateReply)
	if err != nil {
		return models.TriageResult{}, err
	}
	return models.TriageResult{
		Severity:      models.Severity(*reply.Severity),
		SuggestedFlow: models.Flow(*reply.SuggestedFlow),
		Reasoning:     *reply.Reasoning,
	}, nil
}
