package core

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"piecework.app/piecework/logging"
)

const sweepTimeout = 4 * time.Minute

// Sweeper purges expired recycle bin entries once at start and then on a
// cron schedule. A failed run is logged and reported; the next tick tries
// again.
type Sweeper struct {
	recycle  *RecycleBinService
	notifier Notifier
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

func NewSweeper(recycle *RecycleBinService, notifier Notifier, logger *zap.Logger) *Sweeper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	logger = logger.Named("sweeper")
	return &Sweeper{
		recycle:  recycle,
		notifier: notifier,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(logging.CronLogger(logger)),
			cron.WithChain(cron.Recover(logging.CronLogger(logger)), cron.SkipIfStillRunning(logging.CronLogger(logger))),
		),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs a single sweep and returns the number of purged entries.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := s.recycle.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Error("recycle bin sweep failed", zap.Error(err))
		if nerr := s.notifier.Error(fmt.Sprintf("recycle bin sweep failed: %v", err)); nerr != nil {
			s.logger.Warn("sweep failure notification failed", zap.Error(nerr))
		}
		return 0, err
	}
	if n > 0 {
		s.logger.Info("recycle bin swept", zap.Int64("purged", n))
	}
	return n, nil
}

// Start runs a sweep immediately and schedules the rest.
func (s *Sweeper) Start(schedule string) error {
	_, _ = s.RunOnce(context.Background())

	if _, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
