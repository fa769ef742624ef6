package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/competition-engine/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentSlugConflict   = errors.New("tournament slug already in use")
	ErrTournamentFull           = errors.New("tournament is full")
	ErrTournamentStatusConflict = errors.New("tournament status changed concurrently")
)

type ListTournamentsFilter struct {
	Status  *models.TournamentStatus
	OwnerID *string
	Limit   int
	Offset  int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	// UpdateStatus переводит турнир из from в to; если статус уже другой - ErrTournamentStatusConflict.
	UpdateStatus(ctx context.Context, id string, from, to models.TournamentStatus) error
	// Complete завершает турнир Live с победителем.
	Complete(ctx context.Context, id, winnerID string) error
	// IncrementPlayerCount атомарно занимает место; при заполненном турнире - ErrTournamentFull.
	IncrementPlayerCount(ctx context.Context, id string) (int, error)
	AddAdmin(ctx context.Context, id, userID string) error
	RemoveAdmin(ctx context.Context, id, userID string) error
}

type postgresTournamentRepository struct {
	exec SQLExecutor
}

func NewPostgresTournamentRepository(exec SQLExecutor) TournamentRepository {
	return &postgresTournamentRepository{exec: exec}
}

const tournamentColumns = `id, name, slug, format, status, max_players, player_count, qualifiers_per_group,
	owner_id, admin_ids, prize_amount, winner_id, created_at`

func scanTournament(row interface{ Scan(...any) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Format, &t.Status, &t.MaxPlayers, &t.PlayerCount, &t.QualifiersPerGroup,
		&t.OwnerID, pq.Array(&t.AdminIDs), &t.PrizeAmount, &t.WinnerID, &t.CreatedAt,
	)
	return t, err
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.AdminIDs == nil {
		t.AdminIDs = []string{}
	}
	query := `
		INSERT INTO tournaments (id, name, slug, format, status, max_players, player_count,
			qualifiers_per_group, owner_id, admin_ids, prize_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.exec.QueryRowContext(ctx, query,
		t.ID, t.Name, t.Slug, t.Format, t.Status, t.MaxPlayers, t.PlayerCount,
		t.QualifiersPerGroup, t.OwnerID, pq.Array(t.AdminIDs), t.PrizeAmount,
	).Scan(&t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %s: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.OwnerID != nil {
		query += fmt.Sprintf(" AND owner_id = $%d", argID)
		args = append(args, *filter.OwnerID)
		argID++
	}

	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, id string, from, to models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.exec.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update tournament %s status: %w", id, err)
	}
	return r.checkConditional(ctx, result, id, ErrTournamentStatusConflict)
}

func (r *postgresTournamentRepository) Complete(ctx context.Context, id, winnerID string) error {
	query := `UPDATE tournaments SET status = $1, winner_id = $2 WHERE id = $3 AND status = $4`
	result, err := r.exec.ExecContext(ctx, query, models.StatusCompleted, winnerID, id, models.StatusLive)
	if err != nil {
		return fmt.Errorf("failed to complete tournament %s: %w", id, err)
	}
	return r.checkConditional(ctx, result, id, ErrTournamentStatusConflict)
}

func (r *postgresTournamentRepository) IncrementPlayerCount(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE tournaments SET player_count = player_count + 1
		WHERE id = $1 AND player_count < max_players
		RETURNING player_count`
	var count int
	err := r.exec.QueryRowContext(ctx, query, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		ok, existsErr := exists(ctx, r.exec, "tournaments", id)
		if existsErr != nil {
			return 0, existsErr
		}
		if !ok {
			return 0, ErrTournamentNotFound
		}
		return 0, ErrTournamentFull
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment player count for tournament %s: %w", id, err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) AddAdmin(ctx context.Context, id, userID string) error {
	query := `
		UPDATE tournaments
		SET admin_ids = CASE WHEN $2 = ANY(admin_ids) THEN admin_ids ELSE array_append(admin_ids, $2) END
		WHERE id = $1`
	result, err := r.exec.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to add admin to tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) RemoveAdmin(ctx context.Context, id, userID string) error {
	query := `UPDATE tournaments SET admin_ids = array_remove(admin_ids, $2) WHERE id = $1`
	result, err := r.exec.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to remove admin from tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// checkConditional отличает отсутствующий турнир от не выполненного условия WHERE.
func (r *postgresTournamentRepository) checkConditional(ctx context.Context, result sql.Result, id string, conflictErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}
	ok, err := exists(ctx, r.exec, "tournaments", id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTournamentNotFound
	}
	return conflictErr
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqUniqueViolation {
		if pqErr.Constraint == "tournaments_slug_key" {
			return ErrTournamentSlugConflict
		}
	}
	return err
}
