package services

import (
	"context"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/standings"
	"golang.org/x/sync/errgroup"
)

type StandingsView struct {
	TournamentID string                  `json:"tournament_id"`
	Format       models.TournamentFormat `json:"format"`
	Status       models.TournamentStatus `json:"status"`
	Table        []models.StandingRow    `json:"table,omitempty"`
	Groups       []models.GroupTable     `json:"groups,omitempty"`
}

type StandingsService interface {
	GetStandings(ctx context.Context, tournamentID string) (*StandingsView, error)
}

type standingsService struct {
	store repositories.Store
}

func NewStandingsService(store repositories.Store) StandingsService {
	return &standingsService{store: store}
}

// GetStandings всегда пересчитывает таблицу по полной истории матчей.
func (s *standingsService) GetStandings(ctx context.Context, tournamentID string) (*StandingsView, error) {
	repos := s.store.Repos()

	var (
		t            *models.Tournament
		participants []*models.Participant
		matches      []*models.Match
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = repos.Tournaments.GetByID(gCtx, tournamentID)
		return handleRepositoryError(err)
	})
	g.Go(func() error {
		approved := models.ParticipantApproved
		var err error
		participants, err = repos.Participants.ListByTournament(gCtx, tournamentID, &approved)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = repos.Matches.ListByTournament(gCtx, tournamentID, repositories.MatchFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &StandingsView{TournamentID: t.ID, Format: t.Format, Status: t.Status}
	switch t.Format {
	case models.FormatGroupKnockout:
		view.Groups = standings.CalculateGroups(participants, filterStage(matches, models.StageGroup), t.QualifiersPerGroup)
	case models.FormatKnockout:
		view.Table = standings.Calculate(participants, filterStage(matches, models.StageKnockout))
	default:
		view.Table = standings.Calculate(participants, filterStage(matches, models.StageLeague))
	}
	return view, nil
}

func filterStage(matches []*models.Match, stage models.MatchStage) []*models.Match {
	out := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Stage == stage {
			out = append(out, m)
		}
	}
	return out
}
