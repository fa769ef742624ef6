package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/google/uuid"
)

var (
	ErrBanNotFound = errors.New("ban not found")
	ErrBanConflict = errors.New("player already banned from this match")
)

type BanRepository interface {
	Create(ctx context.Context, b *models.Ban) error
	ListByMatch(ctx context.Context, matchID string) ([]*models.Ban, error)
	ListByPlayer(ctx context.Context, tournamentID, playerID string) ([]*models.Ban, error)
	// MarkUsed погашает неиспользованный бан; повторный вызов возвращает ErrBanNotFound.
	MarkUsed(ctx context.Context, id string, at time.Time) error
	// AssignMatch привязывает ожидающий бан (без матча) к матчу.
	AssignMatch(ctx context.Context, id, matchID string) error
	// RevokeUnused удаляет все неиспользованные баны игрока в турнире и возвращает их число.
	RevokeUnused(ctx context.Context, tournamentID, playerID string) (int, error)
}

type postgresBanRepository struct {
	exec SQLExecutor
}

func NewPostgresBanRepository(exec SQLExecutor) BanRepository {
	return &postgresBanRepository{exec: exec}
}

func (r *postgresBanRepository) Create(ctx context.Context, b *models.Ban) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	query := `
		INSERT INTO bans (id, tournament_id, player_id, match_id, reason, used, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`
	_, err := r.exec.ExecContext(ctx, query, b.ID, b.TournamentID, b.PlayerID, b.MatchID, b.Reason, b.Used, b.CreatedAt)
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqUniqueViolation {
		return ErrBanConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create ban for player %s: %w", b.PlayerID, err)
	}
	return nil
}

func (r *postgresBanRepository) ListByMatch(ctx context.Context, matchID string) ([]*models.Ban, error) {
	return r.list(ctx, `WHERE match_id = $1`, matchID)
}

func (r *postgresBanRepository) ListByPlayer(ctx context.Context, tournamentID, playerID string) ([]*models.Ban, error) {
	return r.list(ctx, `WHERE tournament_id = $1 AND player_id = $2`, tournamentID, playerID)
}

func (r *postgresBanRepository) list(ctx context.Context, where string, args ...interface{}) ([]*models.Ban, error) {
	query := `SELECT id, tournament_id, player_id, COALESCE(match_id, ''), reason, used, created_at, used_at FROM bans ` +
		where + ` ORDER BY created_at, id`
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	bans := make([]*models.Ban, 0)
	for rows.Next() {
		b := &models.Ban{}
		if err := rows.Scan(&b.ID, &b.TournamentID, &b.PlayerID, &b.MatchID, &b.Reason, &b.Used, &b.CreatedAt, &b.UsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ban row: %w", err)
		}
		bans = append(bans, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ban rows: %w", err)
	}
	return bans, nil
}

func (r *postgresBanRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE bans SET used = TRUE, used_at = $1 WHERE id = $2 AND used = FALSE`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark ban %s used: %w", id, err)
	}
	return checkAffectedRows(result, ErrBanNotFound)
}

func (r *postgresBanRepository) AssignMatch(ctx context.Context, id, matchID string) error {
	result, err := r.exec.ExecContext(ctx,
		`UPDATE bans SET match_id = $1 WHERE id = $2 AND used = FALSE AND match_id IS NULL`, matchID, id)
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqUniqueViolation {
		return ErrBanConflict
	}
	if err != nil {
		return fmt.Errorf("failed to assign ban %s to match %s: %w", id, matchID, err)
	}
	return checkAffectedRows(result, ErrBanNotFound)
}

func (r *postgresBanRepository) RevokeUnused(ctx context.Context, tournamentID, playerID string) (int, error) {
	result, err := r.exec.ExecContext(ctx,
		`DELETE FROM bans WHERE tournament_id = $1 AND player_id = $2 AND used = FALSE`, tournamentID, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke bans of player %s: %w", playerID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}
