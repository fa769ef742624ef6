package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/competition-engine/models"
	"github.com/google/uuid"
)

var ErrPayoutConflict = errors.New("payout already recorded for this tournament")

type PayoutRepository interface {
	Create(ctx context.Context, p *models.Payout) error
	ListByTournament(ctx context.Context, tournamentID string) ([]*models.Payout, error)
}

type postgresPayoutRepository struct {
	exec SQLExecutor
}

func NewPostgresPayoutRepository(exec SQLExecutor) PayoutRepository {
	return &postgresPayoutRepository{exec: exec}
}

func (r *postgresPayoutRepository) Create(ctx context.Context, p *models.Payout) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO payouts (id, tournament_id, user_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	err := r.exec.QueryRowContext(ctx, query, p.ID, p.TournamentID, p.UserID, p.Amount, p.Status).Scan(&p.CreatedAt)
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqUniqueViolation {
		return ErrPayoutConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create payout for tournament %s: %w", p.TournamentID, err)
	}
	return nil
}

func (r *postgresPayoutRepository) ListByTournament(ctx context.Context, tournamentID string) ([]*models.Payout, error) {
	rows, err := r.exec.QueryContext(ctx,
		`SELECT id, tournament_id, user_id, amount, status, created_at FROM payouts WHERE tournament_id = $1 ORDER BY created_at, id`,
		tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	payouts := make([]*models.Payout, 0)
	for rows.Next() {
		p := &models.Payout{}
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.UserID, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout rows: %w", err)
	}
	return payouts, nil
}
