package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"veridraws/internal/draw"
	"veridraws/internal/logger"
)

type Syncer interface {
	SyncWallet(ctx context.Context) (*draw.Snapshot, error)
}

// Scheduler triggers a wallet sync on a cron schedule.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	syncer   Syncer
	schedule string
}

func NewScheduler(ctx context.Context, syncer Syncer, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.StdLog())
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		syncer:   syncer,
		schedule: schedule,
	}
}

// Start registers the sync job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runSync); err != nil {
		return fmt.Errorf("schedule sync %q: %w", s.schedule, err)
	}

	logger.Info("scheduler: sync job scheduled", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done once a running job
// finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSync() {
	if s.ctx.Err() != nil {
		return
	}

	logger.Debug("scheduler: sync job...")
	snapshot, err := s.syncer.SyncWallet(s.ctx)
	if err != nil {
		logger.Warn("scheduler: sync job failed", zap.Error(err))
		return
	}
	if snapshot == nil {
		logger.Debug("scheduler: sync job skipped, no wallet")
		return
	}
	logger.Debug("scheduler: sync job... done", zap.Int("draws", len(snapshot.Draws)))
}
