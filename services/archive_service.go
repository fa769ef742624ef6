package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/storage"
)

// TournamentResults - снимок итогов, который уходит в архив.
type TournamentResults struct {
	Tournament *models.Tournament `json:"tournament"`
	WinnerID   string             `json:"winner_id"`
	Standings  *StandingsView     `json:"standings"`
	Matches    []*models.Match    `json:"matches"`
	Payouts    []*models.Payout   `json:"payouts"`
	ArchivedAt time.Time          `json:"archived_at"`
}

type archiveService struct {
	store     repositories.Store
	standings StandingsService
	uploader  storage.FileUploader
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiveService returns a ResultsArchiver that uploads completed tournaments as JSON.
func NewArchiveService(store repositories.Store, standings StandingsService, uploader storage.FileUploader, logger *slog.Logger) ResultsArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &archiveService{store: store, standings: standings, uploader: uploader, logger: logger, now: time.Now}
}

func (s *archiveService) ArchiveTournament(ctx context.Context, tournamentID string) error {
	repos := s.store.Repos()
	t, err := repos.Tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if t.Status != models.StatusCompleted {
		return ErrPreconditionFailed
	}
	view, err := s.standings.GetStandings(ctx, tournamentID)
	if err != nil {
		return err
	}
	matches, err := repos.Matches.ListByTournament(ctx, tournamentID, repositories.MatchFilter{})
	if err != nil {
		return err
	}
	payouts, err := repos.Payouts.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(TournamentResults{
		Tournament: t,
		WinnerID:   derefString(t.WinnerID),
		Standings:  view,
		Matches:    matches,
		Payouts:    payouts,
		ArchivedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode results for tournament %s: %w", tournamentID, err)
	}

	res, err := s.uploader.Upload(ctx, storage.ResultsKey(tournamentID), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.logger.Info("tournament results archived", slog.String("tournament_id", tournamentID), slog.String("location", res.Location))
	return nil
}
