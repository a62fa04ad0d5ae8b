// Package scheduler runs periodic background work for CalmPipe, such as
// regenerating the cached weekly insight, on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a unit of scheduled work. The context is canceled when the
// scheduler stops.
type Task func(ctx context.Context) error

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("Scheduler: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("Scheduler: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// NewScheduler creates and starts a cron scheduler. Expressions use the
// standard five fields (minute, hour, day of month, month, day of week) and
// also accept descriptors such as @daily.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	logger := slogLogger{}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start()
	return &Scheduler{cron: c, ctx: ctx, cancel: cancel}
}

// ValidateExpr reports whether expr is a schedule NewScheduler accepts.
func ValidateExpr(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// AddJob schedules task under name using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr, name string, task Task) error {
	_, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		if err := task(s.ctx); err != nil {
			slog.Warn("Scheduler.AddJob: task failed", "job", name, "error", err, "elapsed", time.Since(start))
			return
		}
		slog.Debug("Scheduler.AddJob: task completed", "job", name, "elapsed", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	slog.Info("Scheduler.AddJob: job scheduled", "job", name, "expr", expr)
	return nil
}

// Stop stops the scheduler, cancels running tasks and waits for them to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("Scheduler.Stop: timed out waiting for running jobs")
	}
}
