package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
)

// ParticipantService инкапсулирует бизнес-логику для участников турниров.
type ParticipantService interface {
	RequestJoin(ctx context.Context, tournamentID, userID, displayName string) (*models.Participant, error)
	ApproveParticipant(ctx context.Context, participantID string) (*models.Participant, error)
	AssignGroup(ctx context.Context, participantID, groupKey string) (*models.Participant, error)
	GetParticipant(ctx context.Context, participantID string) (*models.Participant, error)
	ListParticipants(ctx context.Context, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error)
}

type participantService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewParticipantService(store repositories.Store, logger *slog.Logger) ParticipantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &participantService{store: store, logger: logger}
}

// RequestJoin создаёт заявку со статусом pending.
func (s *participantService) RequestJoin(ctx context.Context, tournamentID, userID, displayName string) (*models.Participant, error) {
	name := trimmed(displayName)
	if name == "" {
		return nil, ErrDisplayNameRequired
	}
	repos := s.store.Repos()
	t, err := repos.Tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if t.Status != models.StatusRegistrationOpen {
		return nil, ErrRegistrationNotOpen
	}
	if t.PlayerCount >= t.MaxPlayers {
		return nil, ErrTournamentFull
	}

	p := &models.Participant{
		TournamentID: tournamentID,
		UserID:       userID,
		DisplayName:  name,
		Status:       models.ParticipantPending,
	}
	if err := repos.Participants.Create(ctx, p); err != nil {
		return nil, handleRepositoryError(err)
	}
	return p, nil
}

// ApproveParticipant одобряет заявку и занимает место атомарно: при заполненном турнире
// статус заявки не меняется.
func (s *participantService) ApproveParticipant(ctx context.Context, participantID string) (*models.Participant, error) {
	var approved *models.Participant
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		p, err := tx.Participants.GetByID(ctx, participantID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if p.Status != models.ParticipantPending {
			return ErrParticipantNotPending
		}
		t, err := tx.Tournaments.GetByID(ctx, p.TournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.Status != models.StatusRegistrationOpen {
			return ErrRegistrationNotOpen
		}
		if err := tx.Participants.UpdateStatus(ctx, p.ID, models.ParticipantPending, models.ParticipantApproved); err != nil {
			return handleRepositoryError(err)
		}
		if _, err := tx.Tournaments.IncrementPlayerCount(ctx, t.ID); err != nil {
			return handleRepositoryError(err)
		}
		p.Status = models.ParticipantApproved
		approved = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTournamentFull) {
			s.logger.Warn("approval rejected, tournament full", slog.String("participant_id", participantID))
		}
		return nil, err
	}
	return approved, nil
}

func (s *participantService) AssignGroup(ctx context.Context, participantID, groupKey string) (*models.Participant, error) {
	key := strings.ToUpper(trimmed(groupKey))
	if key == "" {
		return nil, fmt.Errorf("%w: group key is required", ErrInvalidInput)
	}
	repos := s.store.Repos()
	p, err := repos.Participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	t, err := repos.Tournaments.GetByID(ctx, p.TournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !t.HasGroups() {
		return nil, ErrTournamentFormatMismatch
	}
	if t.Status != models.StatusRegistrationOpen {
		return nil, ErrGroupAssignmentLocked
	}
	if err := repos.Participants.SetGroup(ctx, p.ID, &key); err != nil {
		return nil, handleRepositoryError(err)
	}
	p.GroupKey = &key
	return p, nil
}

func (s *participantService) GetParticipant(ctx context.Context, participantID string) (*models.Participant, error) {
	p, err := s.store.Repos().Participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return p, nil
}

func (s *participantService) ListParticipants(ctx context.Context, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error) {
	if _, err := s.store.Repos().Tournaments.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.store.Repos().Participants.ListByTournament(ctx, tournamentID, status)
}
