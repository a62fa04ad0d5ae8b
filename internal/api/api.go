// Package api provides the HTTP server for CalmPipe.
//
// It exposes the triage, insight and reframe endpoints in the bare JSON
// shape the classifier contract uses, plus enveloped endpoints for episodes,
// thought records, postponed worries, safety events and weekly stats.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/classifier"
	"github.com/BTreeMap/CalmPipe/internal/genai"
	"github.com/BTreeMap/CalmPipe/internal/insight"
	"github.com/BTreeMap/CalmPipe/internal/reframe"
	"github.com/BTreeMap/CalmPipe/internal/remote"
	"github.com/BTreeMap/CalmPipe/internal/scheduler"
	"github.com/BTreeMap/CalmPipe/internal/store"
	"github.com/BTreeMap/CalmPipe/internal/triage"
	"github.com/go-chi/chi/v5"
)

// Default server configuration
const (
	// DefaultServerAddr is the listen address when none is configured.
	DefaultServerAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultInsightCacheTTL is how long a cached weekly insight is served
	// before it is regenerated on request.
	DefaultInsightCacheTTL = 24 * time.Hour
	// DefaultRefreshTimeout bounds one scheduled insight refresh.
	DefaultRefreshTimeout = 30 * time.Second
	// MaxRequestBodyBytes caps request bodies.
	MaxRequestBodyBytes = 1 << 20
)

// Remote is a classifier serving triage, insights and reframes.
type Remote interface {
	triage.Remote
	insight.Remote
	reframe.Remote
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr            string
	RemoteTimeout   time.Duration
	ClassifierURL   string
	InsightCron     string
	InsightCacheTTL time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithRemoteTimeout bounds every remote classifier call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *Opts) { o.RemoteTimeout = d }
}

// WithClassifierURL selects an HTTP classifier service instead of the
// language model client.
func WithClassifierURL(url string) Option {
	return func(o *Opts) { o.ClassifierURL = url }
}

// WithInsightCron schedules periodic weekly insight regeneration.
func WithInsightCron(expr string) Option {
	return func(o *Opts) { o.InsightCron = expr }
}

// WithInsightCacheTTL sets how long a cached weekly insight stays fresh.
func WithInsightCacheTTL(d time.Duration) Option {
	return func(o *Opts) { o.InsightCacheTTL = d }
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	st          store.Store
	coordinator *triage.Coordinator
	insights    *insight.Generator
	reframer    *reframe.Reframer
	remoteSet   bool
	cacheTTL    time.Duration
	now         func() time.Time
	router      chi.Router
}

// NewServer wires the handlers. A nil store is replaced by an in-memory
// one. A nil remote makes every classifier-backed
// operation use its local fallback.
func NewServer(st store.Store, r Remote, opts ...Option) *Server {
	cfg := Opts{RemoteTimeout: remote.DefaultTimeout, InsightCacheTTL: DefaultInsightCacheTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	if st == nil {
		st = store.NewInMemoryStore()
	}

	var (
		triageRemote  triage.Remote
		insightRemote insight.Remote
		reframeRemote reframe.Remote
	)
	if r != nil {
		triageRemote, insightRemote, reframeRemote = r, r, r
	}

	s := &Server{
		st:          st,
		coordinator: triage.NewCoordinator(triageRemote, triage.WithTimeout(cfg.RemoteTimeout)),
		insights:    insight.NewGenerator(insightRemote, insight.WithTimeout(cfg.RemoteTimeout)),
		reframer:    reframe.NewReframer(reframeRemote, reframe.WithTimeout(cfg.RemoteTimeout)),
		remoteSet:   r != nil,
		cacheTTL:    cfg.InsightCacheTTL,
		now:         time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRemote picks the classifier backend: an HTTP service when a URL is
// configured, else the language model when an API key is available, else none.
func buildRemote(cfg Opts, genaiOpts []genai.Option) Remote {
	if cfg.ClassifierURL != "" {
		slog.Info("Using HTTP classifier service", "url", cfg.ClassifierURL)
		return classifier.NewHTTP(cfg.ClassifierURL)
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		if errors.Is(err, genai.ErrNoAPIKey) {
			slog.Warn("No classifier configured; triage, insights and reframes use local fallbacks")
		} else {
			slog.Error("Failed to create GenAI client; using local fallbacks", "error", err)
		}
		return nil
	}
	slog.Info("Using language model classifier")
	return classifier.NewGenAI(client)
}

// Run opens the store, builds the server and serves until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultServerAddr}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	srv := NewServer(st, buildRemote(cfg, genaiOpts), apiOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InsightCron != "" {
		sched := scheduler.NewScheduler()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
		if err := sched.AddJob(cfg.InsightCron, "weekly-insight-refresh", srv.scheduledRefresh); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("CalmPipe API listening", "addr", cfg.Addr, "remote_configured", srv.remoteSet)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// scheduledRefresh regenerates the cached weekly insight.
func (s *Server) scheduledRefresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultRefreshTimeout)
	defer cancel()
	wi, err := s.refreshWeeklyInsight(ctx)
	if err != nil {
		return err
	}
	slog.Info("Server.scheduledRefresh: weekly insight refreshed", "id", wi.ID, "source", wi.Source)
	return nil
}
