// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "@daily"

// Parse accepts a standard five-field cron line, a descriptor such as
// "@daily" or "@every 6h", or a bare Go duration like "6h".
func Parse(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSchedule
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule %q: interval must be positive", spec)
		}
		return cron.Every(d), nil
	}
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

type Job func(ctx context.Context) error

// Runner runs Job at each activation of Schedule. Activations never overlap:
// the next one is computed after the current job returns.
type Runner struct {
	Logger     *zap.Logger
	Schedule   cron.Schedule
	Job        Job
	RunAtStart bool
	Now        func() time.Time
}

func NewRunner(logger *zap.Logger, s cron.Schedule, job Job, runAtStart bool) *Runner {
	return &Runner{
		Logger:     logger,
		Schedule:   s,
		Job:        job,
		RunAtStart: runAtStart,
		Now:        time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if r.RunAtStart {
		r.runOnce(ctx)
	}
	for {
		next := r.Schedule.Next(r.Now())
		if next.IsZero() {
			r.Logger.Warn("scheduler_no_next_activation")
			return
		}
		r.Logger.Info("scheduler_next", zap.Time("at", next))

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			r.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("scheduler_job_panic", zap.Any("panic", rec))
		}
	}()
	if err := r.Job(ctx); err != nil {
		r.Logger.Warn("scheduler_job_failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	r.Logger.Debug("scheduler_job_done", zap.Duration("took", time.Since(start)))
}
