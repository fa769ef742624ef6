package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/gosimple/slug"
)

type CreateTournamentInput struct {
	Name               string                  `json:"name"`
	Format             models.TournamentFormat `json:"format"`
	MaxPlayers         int                     `json:"max_players"`
	QualifiersPerGroup int                     `json:"qualifiers_per_group"`
	PrizeAmount        int64                   `json:"prize_amount"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, ownerID string, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	// UpdateStatus закрывает регистрацию вручную. Completed выставляет только движок.
	UpdateStatus(ctx context.Context, id string, next models.TournamentStatus) (*models.Tournament, error)
	GrantAdmin(ctx context.Context, id, userID string) (*models.Tournament, error)
	RevokeAdmin(ctx context.Context, id, userID string) (*models.Tournament, error)
	// Authorize возвращает турнир, если пользователь - владелец или администратор.
	Authorize(ctx context.Context, tournamentID, userID string) (*models.Tournament, error)
	ListPayouts(ctx context.Context, id string) ([]*models.Payout, error)
}

type tournamentService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewTournamentService(store repositories.Store, logger *slog.Logger) TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{store: store, logger: logger}
}

func (s *tournamentService) CreateTournament(ctx context.Context, ownerID string, input CreateTournamentInput) (*models.Tournament, error) {
	name := trimmed(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if !input.Format.Valid() {
		return nil, ErrTournamentInvalidFormat
	}
	if input.MaxPlayers < 2 {
		return nil, ErrTournamentInvalidCapacity
	}
	if input.PrizeAmount < 0 {
		return nil, ErrTournamentInvalidPrize
	}
	if ownerID == "" {
		return nil, ErrUnauthorized
	}

	qualifiers := input.QualifiersPerGroup
	if qualifiers <= 0 {
		qualifiers = models.DefaultQualifiersPerGroup
	}

	t := &models.Tournament{
		Name:               name,
		Slug:               slug.Make(name),
		Format:             input.Format,
		Status:             models.StatusRegistrationOpen,
		MaxPlayers:         input.MaxPlayers,
		QualifiersPerGroup: qualifiers,
		OwnerID:            ownerID,
		AdminIDs:           []string{},
		PrizeAmount:        input.PrizeAmount,
	}
	if t.Slug == "" {
		return nil, ErrTournamentNameRequired
	}
	if err := s.store.Repos().Tournaments.Create(ctx, t); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.Info("tournament created", slog.String("tournament_id", t.ID), slog.String("slug", t.Slug), slog.String("format", string(t.Format)))
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.store.Repos().Tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	list, err := s.store.Repos().Tournaments.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return list, nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, id string, next models.TournamentStatus) (*models.Tournament, error) {
	t, err := s.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if next == models.StatusCompleted || !isValidStatusTransition(t.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, next)
	}
	if t.Status == next {
		return t, nil
	}
	if err := s.store.Repos().Tournaments.UpdateStatus(ctx, id, t.Status, next); err != nil {
		return nil, handleRepositoryError(err)
	}
	t.Status = next
	return t, nil
}

func (s *tournamentService) GrantAdmin(ctx context.Context, id, userID string) (*models.Tournament, error) {
	if trimmed(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := s.store.Repos().Tournaments.AddAdmin(ctx, id, userID); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.GetTournament(ctx, id)
}

func (s *tournamentService) RevokeAdmin(ctx context.Context, id, userID string) (*models.Tournament, error) {
	if err := s.store.Repos().Tournaments.RemoveAdmin(ctx, id, userID); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.GetTournament(ctx, id)
}

func (s *tournamentService) Authorize(ctx context.Context, tournamentID, userID string) (*models.Tournament, error) {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(t, userID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) ListPayouts(ctx context.Context, id string) ([]*models.Payout, error) {
	if _, err := s.GetTournament(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Repos().Payouts.ListByTournament(ctx, id)
}
