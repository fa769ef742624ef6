package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/competition-engine/models"
	"github.com/google/uuid"
)

var (
	ErrParticipantNotFound       = errors.New("participant not found")
	ErrParticipantConflict       = errors.New("user already registered for this tournament")
	ErrParticipantStatusConflict = errors.New("participant status changed concurrently")
	ErrParticipantTournament     = errors.New("invalid tournament reference")
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id string) (*models.Participant, error)
	GetByTournamentAndUser(ctx context.Context, tournamentID, userID string) (*models.Participant, error)
	// ListByTournament returns participants in registration order (created_at, id).
	ListByTournament(ctx context.Context, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ParticipantStatus) error
	SetGroup(ctx context.Context, id string, groupKey *string) error
	// IncrementStrikes атомарно увеличивает счётчик и возвращает новое значение.
	IncrementStrikes(ctx context.Context, id string) (int, error)
	SetBanned(ctx context.Context, id string, banned bool) error
	ClearStrikes(ctx context.Context, id string) error
	IncrementAccuracyTotal(ctx context.Context, id string) error
	IncrementAccuracyConfirmed(ctx context.Context, id string) error
}

type postgresParticipantRepository struct {
	exec SQLExecutor
}

func NewPostgresParticipantRepository(exec SQLExecutor) ParticipantRepository {
	return &postgresParticipantRepository{exec: exec}
}

const participantColumns = `id, tournament_id, user_id, display_name, status, group_key, strikes,
	banned_next_match, accuracy_total, accuracy_confirmed, created_at`

func scanParticipant(row interface{ Scan(...any) error }) (*models.Participant, error) {
	p := &models.Participant{}
	err := row.Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.DisplayName, &p.Status, &p.GroupKey, &p.Strikes,
		&p.BannedNextMatch, &p.AccuracyTotal, &p.AccuracyConfirmed, &p.CreatedAt,
	)
	return p, err
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO participants (id, tournament_id, user_id, display_name, status, group_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := r.exec.QueryRowContext(ctx, query,
		p.ID, p.TournamentID, p.UserID, p.DisplayName, p.Status, p.GroupKey,
	).Scan(&p.CreatedAt)
	return r.handleParticipantError(err)
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	p, err := scanParticipant(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant %s: %w", id, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByTournamentAndUser(ctx context.Context, tournamentID, userID string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE tournament_id = $1 AND user_id = $2`
	p, err := scanParticipant(r.exec.QueryRowContext(ctx, query, tournamentID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant for user %s: %w", userID, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY created_at, id"

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) UpdateStatus(ctx context.Context, id string, from, to models.ParticipantStatus) error {
	query := `UPDATE participants SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.exec.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update participant %s status: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrParticipantStatusConflict); err != nil {
		ok, existsErr := exists(ctx, r.exec, "participants", id)
		if existsErr != nil {
			return existsErr
		}
		if !ok {
			return ErrParticipantNotFound
		}
		return err
	}
	return nil
}

func (r *postgresParticipantRepository) SetGroup(ctx context.Context, id string, groupKey *string) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE participants SET group_key = $1 WHERE id = $2`, groupKey, id)
	if err != nil {
		return fmt.Errorf("failed to set group for participant %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) IncrementStrikes(ctx context.Context, id string) (int, error) {
	var strikes int
	err := r.exec.QueryRowContext(ctx,
		`UPDATE participants SET strikes = strikes + 1 WHERE id = $1 RETURNING strikes`, id,
	).Scan(&strikes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrParticipantNotFound
		}
		return 0, fmt.Errorf("failed to increment strikes for participant %s: %w", id, err)
	}
	return strikes, nil
}

func (r *postgresParticipantRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE participants SET banned_next_match = $1 WHERE id = $2`, banned, id)
	if err != nil {
		return fmt.Errorf("failed to set ban flag for participant %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ClearStrikes(ctx context.Context, id string) error {
	result, err := r.exec.ExecContext(ctx,
		`UPDATE participants SET strikes = 0, banned_next_match = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear strikes for participant %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) IncrementAccuracyTotal(ctx context.Context, id string) error {
	return r.increment(ctx, id, "accuracy_total")
}

func (r *postgresParticipantRepository) IncrementAccuracyConfirmed(ctx context.Context, id string) error {
	return r.increment(ctx, id, "accuracy_confirmed")
}

func (r *postgresParticipantRepository) increment(ctx context.Context, id, column string) error {
	query := fmt.Sprintf(`UPDATE participants SET %[1]s = %[1]s + 1 WHERE id = $1`, column)
	result, err := r.exec.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment %s for participant %s: %w", column, id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) handleParticipantError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrParticipantConflict
		case pqForeignKeyViolation:
			return ErrParticipantTournament
		}
	}
	return err
}
