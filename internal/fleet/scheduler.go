package fleet

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// FleetRunner is what the scheduler drives; satisfied by Orchestrator.
type FleetRunner interface {
	RunFleetCheck(ctx context.Context, caller Caller, kind ProbeKind) (*Summary, error)
}

// Scheduler triggers unattended whole-fleet health runs on a cron
// schedule. Runs execute as SystemCaller, so every server is checked.
type Scheduler struct {
	runner   FleetRunner
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron

	// runTimeout bounds one scheduled run end to end.
	runTimeout time.Duration
}

// NewScheduler creates a Scheduler for the given cron expression.
func NewScheduler(runner FleetRunner, schedule string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		schedule:   schedule,
		logger:     logger,
		runTimeout: 30 * time.Minute,
	}
}

// Start validates the schedule and begins dispatching runs. Returns an
// error on an invalid cron expression.
func (s *Scheduler) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("fleet check scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	summary, err := s.runner.RunFleetCheck(ctx, SystemCaller, KindHealth)
	if err != nil {
		s.logger.Error("scheduled fleet check failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled fleet check finished",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("inactive", summary.Inactive),
	)
}
