package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusRegistrationOpen: {models.StatusLive},
		models.StatusLive:             {models.StatusCompleted},
		models.StatusCompleted:        {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// handleRepositoryError переводит ошибки хранилища в таксономию сервисов.
func handleRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrMatchVersionConflict),
		errors.Is(err, repositories.ErrTournamentStatusConflict),
		errors.Is(err, repositories.ErrParticipantStatusConflict):
		return fmt.Errorf("%w: %v", ErrConflictRetry, err)
	case errors.Is(err, repositories.ErrTournamentFull):
		return ErrTournamentFull
	case errors.Is(err, repositories.ErrParticipantConflict):
		return ErrRegistrationConflict
	case errors.Is(err, repositories.ErrTournamentSlugConflict):
		return ErrTournamentSlugConflict
	}
	return err
}

func requireAdmin(t *models.Tournament, userID string) error {
	if !t.IsAdmin(userID) {
		return ErrNotTournamentAdmin
	}
	return nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
