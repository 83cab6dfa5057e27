package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/retention-intel/server/pkg/logger"
)

// Runner is the job executed on every tick.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler runs the evaluation batch on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// NewScheduler registers runner under spec. Specs use the standard
// 5-field format or descriptors such as "@every 5m". Overlapping ticks
// are skipped while a run is still in progress.
func NewScheduler(spec string, runner Runner, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		logx.Info().Str("schedule", spec).Msg("evaluation_batch_fired")
		if err := runner.Run(ctx); err != nil {
			logx.Error().Err(err).Str("schedule", spec).Msg("evaluation_batch_failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("registering evaluation cron %q: %w", spec, err)
	}
	return s, nil
}

// Start begins executing the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running batch, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of registered cron entries.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
