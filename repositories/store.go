package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Repositories - набор репозиториев, работающих поверх одного исполнителя (БД или транзакции).
type Repositories struct {
	Tournaments  TournamentRepository
	Participants ParticipantRepository
	Matches      MatchRepository
	Bans         BanRepository
	Payouts      PayoutRepository
}

// Store gives access to repositories and runs units of work atomically.
// Either every write made inside fn is committed, or none is.
type Store interface {
	Repos() Repositories
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

func newPostgresRepositories(exec SQLExecutor) Repositories {
	return Repositories{
		Tournaments:  NewPostgresTournamentRepository(exec),
		Participants: NewPostgresParticipantRepository(exec),
		Matches:      NewPostgresMatchRepository(exec),
		Bans:         NewPostgresBanRepository(exec),
		Payouts:      NewPostgresPayoutRepository(exec),
	}
}

func (s *PostgresStore) Repos() Repositories {
	return newPostgresRepositories(s.db)
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, newPostgresRepositories(tx))
}
