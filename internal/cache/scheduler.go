package cache

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic cache sweeps in the background.
type Scheduler struct {
	cron   *cron.Cron
	store  *Store
	logger *slog.Logger
}

func NewScheduler(store *Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(
		slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	return &Scheduler{cron: c, store: store, logger: logger}
}

// Start schedules the sweep with a standard 5-field cron expression.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.store.Sweep(context.Background()); err != nil {
			s.logger.Error("cache sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("cache sweep scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop halts scheduling and returns a context that is done once any
// running sweep finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
