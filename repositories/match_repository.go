package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/google/uuid"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchVersionConflict   = errors.New("match was modified concurrently")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
)

type MatchFilter struct {
	Stage     *models.MatchStage
	Status    *models.MatchStatus
	RoundName *string
	GroupKey  *string
}

type MatchRepository interface {
	// Create вставляет матч; при существующем idempotency key ничего не пишет и возвращает false.
	Create(ctx context.Context, m *models.Match) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Match, error)
	GetByKey(ctx context.Context, idempotencyKey string) (*models.Match, error)
	// ListByTournament returns matches ordered by match order, then id.
	ListByTournament(ctx context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error)
	// ListDue returns matches past their deadline that may still be auto-resolved.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Match, error)
	// Update пишет матч, только если его версия в хранилище равна expectedVersion.
	// При успехе m.Version увеличивается.
	Update(ctx context.Context, m *models.Match, expectedVersion int) error
}

type postgresMatchRepository struct {
	exec SQLExecutor
}

func NewPostgresMatchRepository(exec SQLExecutor) MatchRepository {
	return &postgresMatchRepository{exec: exec}
}

const matchColumns = `id, tournament_id, stage, group_key, player_a_id, player_a_name, player_b_id, player_b_name,
	round_name, bracket_index, match_order, status, score_a, score_b, ready_a, ready_b,
	submitted_by, submitted_at, confirmed_by, confirmed_at, disputed_by, disputed_at,
	deadline, auto_resolved, auto_reason, idempotency_key, version, created_at`

func scanMatch(row interface{ Scan(...any) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Stage, &m.GroupKey, &m.PlayerAID, &m.PlayerAName, &m.PlayerBID, &m.PlayerBName,
		&m.RoundName, &m.BracketIndex, &m.Order, &m.Status, &m.Score.A, &m.Score.B, &m.ReadyA, &m.ReadyB,
		&m.SubmittedBy, &m.SubmittedAt, &m.ConfirmedBy, &m.ConfirmedAt, &m.DisputedBy, &m.DisputedAt,
		&m.Deadline, &m.AutoResolved, &m.AutoReason, &m.IdempotencyKey, &m.Version, &m.CreatedAt,
	)
	return m, err
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	query := `
		INSERT INTO matches (id, tournament_id, stage, group_key, player_a_id, player_a_name, player_b_id,
			player_b_name, round_name, bracket_index, match_order, status, score_a, score_b, deadline,
			idempotency_key, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at`

	err := r.exec.QueryRowContext(ctx, query,
		m.ID, m.TournamentID, m.Stage, m.GroupKey, m.PlayerAID, m.PlayerAName, m.PlayerBID,
		m.PlayerBName, m.RoundName, m.BracketIndex, m.Order, m.Status, m.Score.A, m.Score.B, m.Deadline,
		m.IdempotencyKey, m.Version,
	).Scan(&m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.handleMatchError(err)
	}
	return true, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %s: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByKey(ctx context.Context, idempotencyKey string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE idempotency_key = $1`
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, idempotencyKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by key %s: %w", idempotencyKey, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2
	addFilter := func(column string, value interface{}) {
		queryBuilder.WriteString(" AND " + column + " = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, value)
		placeholderIndex++
	}

	if filter.Stage != nil {
		addFilter("stage", *filter.Stage)
	}
	if filter.Status != nil {
		addFilter("status", *filter.Status)
	}
	if filter.RoundName != nil {
		addFilter("round_name", *filter.RoundName)
	}
	if filter.GroupKey != nil {
		addFilter("group_key", *filter.GroupKey)
	}
	queryBuilder.WriteString(" ORDER BY match_order, id")

	return r.list(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE deadline IS NOT NULL AND deadline <= $1 AND auto_resolved = FALSE
		  AND status IN ($2, $3) AND player_a_id <> '' AND player_b_id <> '' AND auto_reason <> $4
		ORDER BY deadline, id`
	args := []interface{}{now, models.MatchPending, models.MatchPendingConfirmation, models.AutoAwaitingAdmin}
	if limit > 0 {
		query += " LIMIT $5"
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

func (r *postgresMatchRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match, expectedVersion int) error {
	query := `
		UPDATE matches SET
			player_a_id = $1, player_a_name = $2, player_b_id = $3, player_b_name = $4,
			status = $5, score_a = $6, score_b = $7, ready_a = $8, ready_b = $9,
			submitted_by = $10, submitted_at = $11, confirmed_by = $12, confirmed_at = $13,
			disputed_by = $14, disputed_at = $15, deadline = $16, auto_resolved = $17, auto_reason = $18,
			version = version + 1
		WHERE id = $19 AND version = $20`

	result, err := r.exec.ExecContext(ctx, query,
		m.PlayerAID, m.PlayerAName, m.PlayerBID, m.PlayerBName,
		m.Status, m.Score.A, m.Score.B, m.ReadyA, m.ReadyB,
		m.SubmittedBy, m.SubmittedAt, m.ConfirmedBy, m.ConfirmedAt,
		m.DisputedBy, m.DisputedAt, m.Deadline, m.AutoResolved, m.AutoReason,
		m.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	if err := checkAffectedRows(result, ErrMatchVersionConflict); err != nil {
		ok, existsErr := exists(ctx, r.exec, "matches", m.ID)
		if existsErr != nil {
			return existsErr
		}
		if !ok {
			return ErrMatchNotFound
		}
		return err
	}
	m.Version = expectedVersion + 1
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if pqErr, ok := asPQError(err); ok && pqErr.Code == pqForeignKeyViolation {
		if pqErr.Constraint == "matches_tournament_id_fkey" {
			return ErrMatchTournamentInvalid
		}
	}
	return err
}
