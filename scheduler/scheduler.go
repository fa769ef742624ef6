package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/competition-engine/services"
	"github.com/go-co-op/gocron/v2"
)

// Sweeper - то, что планировщик запускает по расписанию.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// AutoResolveScheduler периодически запускает проход авто-разрешения.
// Следующий проход не стартует, пока не закончился предыдущий.
type AutoResolveScheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

func New(sweeper Sweeper, interval time.Duration, logger *slog.Logger) (*AutoResolveScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			result, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Error("auto-resolution sweep failed", slog.Any("error", err))
				return
			}
			if result.Failed > 0 {
				logger.Warn("auto-resolution sweep had failures", slog.Int("failed", result.Failed))
			}
		}),
		gocron.WithName("auto-resolve-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to register sweep job: %w", err)
	}
	return &AutoResolveScheduler{sched: sched, logger: logger}, nil
}

func (s *AutoResolveScheduler) Start() {
	s.sched.Start()
	s.logger.Info("auto-resolution scheduler started")
}

// Stop ждёт завершения текущего прохода.
func (s *AutoResolveScheduler) Stop() error {
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info("auto-resolution scheduler stopped")
	return nil
}
