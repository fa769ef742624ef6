package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Dosada05/competition-engine/repositories"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepConcurrency = 4
	DefaultSweepBatch       = 200
)

type SweepResult struct {
	Checked  int `json:"checked"`
	Resolved int `json:"resolved"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type AutoResolveService interface {
	// Sweep проверяет просроченные матчи и разрешает их по правилам авто-разрешения.
	// Ошибка одного матча не останавливает остальные.
	Sweep(ctx context.Context) (SweepResult, error)
}

type autoResolveService struct {
	store       repositories.Store
	matches     MatchService
	concurrency int
	batch       int
	logger      *slog.Logger
	now         func() time.Time
}

func NewAutoResolveService(store repositories.Store, matches MatchService, concurrency int, cfg EngineConfig, logger *slog.Logger) AutoResolveService {
	cfg = cfg.withDefaults()
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &autoResolveService{
		store:       store,
		matches:     matches,
		concurrency: concurrency,
		batch:       DefaultSweepBatch,
		logger:      logger,
		now:         cfg.Now,
	}
}

func (s *autoResolveService) Sweep(ctx context.Context) (SweepResult, error) {
	due, err := s.store.Repos().Matches.ListDue(ctx, s.now(), s.batch)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list due matches: %w", err)
	}

	var resolved, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, m := range due {
		matchID := m.ID
		g.Go(func() error {
			_, ok, err := s.matches.AutoResolve(ctx, matchID)
			switch {
			case err != nil && errors.Is(err, context.Canceled):
				return err
			case err != nil:
				failed.Add(1)
				s.logger.Warn("auto-resolution failed", slog.String("match_id", matchID), slog.Any("error", err))
			case ok:
				resolved.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	result := SweepResult{
		Checked:  len(due),
		Resolved: int(resolved.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	if result.Checked > 0 {
		s.logger.Info("auto-resolution sweep finished",
			slog.Int("checked", result.Checked),
			slog.Int("resolved", result.Resolved),
			slog.Int("skipped", result.Skipped),
			slog.Int("failed", result.Failed))
	}
	return result, waitErr
}
