package scheduler

import (
	"context"
	"time"

	"finance_assistant_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TickScheduler drives the engine: one cron job runs the daily obligation
// tick. The skip-if-still-running chain plus the engine's own lock guarantee
// ticks never overlap; maxTickRuntime bounds a runaway tick.
type TickScheduler struct {
	cronEngine     *cron.Cron
	runner         app.TickRunner
	clock          app.Clock
	log            *logrus.Logger
	cronSpecTick   string
	maxTickRuntime time.Duration
}

func NewTickScheduler(
	runner app.TickRunner,
	clock app.Clock,
	log *logrus.Logger,
	cronSpecTick string, // e.g. "0 8 * * *" (08:00 daily)
	maxTickRuntime time.Duration,
) *TickScheduler {
	return &TickScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:         runner,
		clock:          clock,
		log:            log,
		cronSpecTick:   cronSpecTick,
		maxTickRuntime: maxTickRuntime,
	}
}

func (s *TickScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpecTick, func() {
		today := s.clock.Today()
		s.log.Infof("Cron job triggered, running tick for %s", today.Format("2006-01-02"))

		ctx, cancel := context.WithTimeout(context.Background(), s.maxTickRuntime)
		defer cancel()

		if err := s.runner.RunTick(ctx, today); err != nil {
			s.log.Errorf("Tick for %s failed: %v", today.Format("2006-01-02"), err)
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.log.Infof("Tick scheduler started with spec %q", s.cronSpecTick)
	return nil
}

func (s *TickScheduler) Stop() {
	s.log.Info("Stopping tick scheduler...")
	ctx := s.cronEngine.Stop() // no new jobs; wait for a running tick
	<-ctx.Done()
	s.log.Info("Tick scheduler gracefully stopped.")
}
