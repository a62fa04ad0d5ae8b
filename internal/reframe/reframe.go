// Package reframe offers a gentler, more balanced alternative to an anxious
// thought, with a fixed fallback when the remote classifier cannot answer.
package reframe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/remote"
	"github.com/BTreeMap/CalmPipe/internal/safety"
)

// FallbackBalancedThought is used whenever the remote cannot answer.
const FallbackBalancedThought = "What would you tell a friend who had this same thought? Often we're kinder to others than to ourselves."

// Remote reframes a thought and returns the raw reply text.
type Remote interface {
	Reframe(ctx context.Context, req models.ReframeRequest) (string, error)
}

// Opts holds reframer configuration.
type Opts struct {
	Timeout time.Duration
}

// Option configures a Reframer.
type Option func(*Opts)

// WithTimeout bounds the wait for the remote classifier.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Reframer produces reframes. It is safe for concurrent use.
type Reframer struct {
	remote  Remote
	timeout time.Duration
}

// NewReframer creates a reframer. A nil remote always uses the fallback.
func NewReframer(r Remote, opts ...Option) *Reframer {
	cfg := Opts{Timeout: remote.DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reframer{remote: r, timeout: cfg.Timeout}
}

// Reframe returns a validation and a balanced thought. When the situation or
// the thought matches crisis keywords no reframe is attempted and the result
// only carries IsCrisis.
func (r *Reframer) Reframe(ctx context.Context, req models.ReframeRequest) models.ReframeResult {
	check := safety.Check(req.Situation + "\n" + req.AutomaticThought)
	if check.IsCrisis {
		slog.Info("Reframer.Reframe: crisis keywords in thought, skipping reframe", "matched_keywords", check.MatchedKeywords)
		return models.ReframeResult{IsCrisis: true}
	}

	if r.remote == nil {
		return Fallback(req)
	}

	out, err := r.reframe(ctx, req)
	if err != nil {
		slog.Warn("Reframer.Reframe: remote reframe failed, using fallback", "error", err, "kind", remote.Kind(err))
		return Fallback(req)
	}
	return out
}

// Fallback is the fixed reframe used when the remote cannot answer.
func Fallback(req models.ReframeRequest) models.ReframeResult {
	emotion := strings.ToLower(strings.TrimSpace(req.Emotion))
	if emotion == "" {
		emotion = "this way"
	}
	return models.ReframeResult{
		Validation:      fmt.Sprintf("It makes sense that you'd feel %s in that situation.", emotion),
		BalancedThought: FallbackBalancedThought,
	}
}

type remoteReply struct {
	Validation      *string `json:"validation"`
	BalancedThought *string `json:"balancedThought"`
}

func validateReply(r *remoteReply) error {
	if err := remote.RequireString("validation", r.Validation); err != nil {
		return err
	}
	return remote.RequireString("balancedThought", r.BalancedThought)
}

func (r *Reframer) reframe(ctx context.Context, req models.ReframeRequest) (models.ReframeResult, error) {
	call := func(ctx context.Context) (string, error) {
		return r.remote.Reframe(ctx, req)
	}
	reply, err := remote.Do(ctx, r.timeout, call, validateReply)
	if err != nil {
		return models.ReframeResult{}, err
	}
	return models.ReframeResult{Validation: *reply.Validation, BalancedThought: *reply.BalancedThought}, nil
}
