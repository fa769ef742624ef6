package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/competition-engine/brackets"
	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/standings"
	"golang.org/x/sync/errgroup"
)

type FixtureService interface {
	// GenerateFixtures запускает генератор, соответствующий формату турнира.
	GenerateFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error)
	GenerateLeagueFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error)
	GenerateGroupFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error)
	GenerateKnockoutBracket(ctx context.Context, tournamentID string) ([]*models.Match, error)
	SeedKnockoutFromGroups(ctx context.Context, tournamentID string) ([]*models.Match, error)
}

type fixtureService struct {
	store       repositories.Store
	roundRobin  brackets.BracketGenerator
	knockout    brackets.BracketGenerator
	progression *progression
	notifier    EventNotifier
	logger      *slog.Logger
	now         func() time.Time
	matchWindow time.Duration
}

func NewFixtureService(store repositories.Store, notifier EventNotifier, cfg EngineConfig, logger *slog.Logger) FixtureService {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &fixtureService{
		store:       store,
		roundRobin:  brackets.NewRoundRobinGenerator(),
		knockout:    brackets.NewSingleEliminationGenerator(),
		progression: &progression{now: cfg.Now, matchWindow: cfg.MatchWindow},
		notifier:    notifier,
		logger:      logger,
		now:         cfg.Now,
		matchWindow: cfg.MatchWindow,
	}
}

func (s *fixtureService) GenerateFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	t, err := s.store.Repos().Tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	switch t.Format {
	case models.FormatLeague:
		return s.GenerateLeagueFixtures(ctx, tournamentID)
	case models.FormatKnockout:
		return s.GenerateKnockoutBracket(ctx, tournamentID)
	case models.FormatGroupKnockout:
		return s.GenerateGroupFixtures(ctx, tournamentID)
	}
	return nil, ErrTournamentInvalidFormat
}

func (s *fixtureService) GenerateLeagueFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	t, participants, err := s.loadForGeneration(ctx, tournamentID, models.FormatLeague)
	if err != nil {
		return nil, err
	}
	generated, err := s.roundRobin.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: t.ID,
		Entrants:     toEntrants(participants),
	})
	if err != nil {
		return nil, translateGeneratorError(err)
	}
	return s.persist(ctx, t, generated)
}

func (s *fixtureService) GenerateGroupFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	t, participants, err := s.loadForGeneration(ctx, tournamentID, models.FormatGroupKnockout)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*models.Participant)
	for _, p := range participants {
		if p.Group() == "" {
			return nil, fmt.Errorf("%w: %s", ErrParticipantWithoutGroup, p.DisplayName)
		}
		groups[p.Group()] = append(groups[p.Group()], p)
	}

	schedules := make(map[string][]*brackets.BracketMatch, len(groups))
	for key, members := range groups {
		generated, err := s.roundRobin.GenerateBracket(ctx, brackets.GenerateBracketParams{
			TournamentID: t.ID,
			GroupKey:     key,
			Entrants:     toEntrants(members),
		})
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", key, translateGeneratorError(err))
		}
		schedules[key] = generated
	}
	return s.persist(ctx, t, brackets.MergeGroupSchedules(schedules))
}

func (s *fixtureService) GenerateKnockoutBracket(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	t, participants, err := s.loadForGeneration(ctx, tournamentID, models.FormatKnockout)
	if err != nil {
		return nil, err
	}
	generated, err := s.knockout.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: t.ID,
		Entrants:     toEntrants(participants),
	})
	if err != nil {
		return nil, translateGeneratorError(err)
	}
	return s.persist(ctx, t, generated)
}

func (s *fixtureService) SeedKnockoutFromGroups(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	repos := s.store.Repos()

	var (
		t            *models.Tournament
		participants []*models.Participant
		groupMatches []*models.Match
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
		stage := models.StageGroup
		var err error
		groupMatches, err = repos.Matches.ListByTournament(gCtx, tournamentID, repositories.MatchFilter{Stage: &stage})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if t.Format != models.FormatGroupKnockout {
		return nil, ErrTournamentFormatMismatch
	}
	if t.Status != models.StatusLive {
		return nil, ErrTournamentNotLive
	}
	if len(groupMatches) == 0 {
		return nil, ErrGroupStageIncomplete
	}
	for _, m := range groupMatches {
		if m.Status != models.MatchConfirmed {
			return nil, ErrGroupStageIncomplete
		}
	}

	qualifiers := t.QualifiersPerGroup
	if qualifiers <= 0 {
		qualifiers = models.DefaultQualifiersPerGroup
	}
	tables := standings.CalculateGroups(participants, groupMatches, qualifiers)

	seeds := make([]brackets.Entrant, 0, len(tables)*qualifiers)
	for rank := 0; rank < qualifiers; rank++ {
		for _, table := range tables {
			if rank < len(table.Rows) {
				row := table.Rows[rank]
				seeds = append(seeds, brackets.Entrant{UserID: row.UserID, Name: row.Name})
			}
		}
	}

	generated, err := s.knockout.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: t.ID,
		Entrants:     seeds,
	})
	if err != nil {
		return nil, translateGeneratorError(err)
	}
	return s.persist(ctx, t, generated)
}

// loadForGeneration загружает турнир и одобренных участников в порядке регистрации.
func (s *fixtureService) loadForGeneration(ctx context.Context, tournamentID string, format models.TournamentFormat) (*models.Tournament, []*models.Participant, error) {
	repos := s.store.Repos()

	var (
		t            *models.Tournament
		participants []*models.Participant
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
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if t.Format != format {
		return nil, nil, ErrTournamentFormatMismatch
	}
	if t.Status == models.StatusCompleted {
		return nil, nil, ErrTournamentInvalidStatusTransition
	}
	if len(participants) < 2 {
		return nil, nil, ErrNotEnoughParticipants
	}
	return t, participants, nil
}

// persist сохраняет рассчитанные матчи одной транзакцией. Уже существующие ключи пропускаются,
// поэтому повторный запуск безопасен. Турнир переводится в Live.
func (s *fixtureService) persist(ctx context.Context, t *models.Tournament, generated []*brackets.BracketMatch) ([]*models.Match, error) {
	var (
		all     []*models.Match
		created int
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		for _, bm := range generated {
			if bm.IsBye {
				slot, ok := brackets.NextSlot(bm.RoundName, bm.OrderInRound)
				if !ok {
					return fmt.Errorf("bye in final round for tournament %s", t.ID)
				}
				if err := s.progression.fillSlot(ctx, tx, t.ID, slot, bm.ByeEntrant.UserID, bm.ByeEntrant.Name); err != nil {
					return fmt.Errorf("failed to place bye entrant %s: %w", bm.ByeEntrant.UserID, err)
				}
				continue
			}

			m := s.toMatch(t.ID, bm)
			ok, err := tx.Matches.Create(ctx, m)
			if err != nil {
				return fmt.Errorf("failed to create match %s: %w", bm.UID, err)
			}
			if !ok {
				continue
			}
			created++
			if m.IsKnockout() {
				// баны, полученные на групповом этапе, переходят на первый матч плей-офф
				for _, userID := range []string{m.PlayerAID, m.PlayerBID} {
					if userID == "" {
						continue
					}
					if err := attachPendingBan(ctx, tx, t.ID, userID, m.ID); err != nil {
						return err
					}
				}
			}
		}

		if t.Status == models.StatusRegistrationOpen {
			if err := tx.Tournaments.UpdateStatus(ctx, t.ID, models.StatusRegistrationOpen, models.StatusLive); err != nil {
				return handleRepositoryError(err)
			}
		}

		var err error
		all, err = tx.Matches.ListByTournament(ctx, t.ID, repositories.MatchFilter{})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fixtures generated",
		slog.String("tournament_id", t.ID),
		slog.String("format", string(t.Format)),
		slog.Int("created", created),
		slog.Int("total", len(all)))
	if s.notifier != nil {
		s.notifier.NotifyTournament(t.ID, brackets.MessageTournamentUpdated, map[string]interface{}{
			"tournament_id": t.ID,
			"status":        string(models.StatusLive),
			"matches":       len(all),
		})
	}
	return all, nil
}

func (s *fixtureService) toMatch(tournamentID string, bm *brackets.BracketMatch) *models.Match {
	m := &models.Match{
		TournamentID:   tournamentID,
		Stage:          bm.Stage,
		GroupKey:       bm.GroupKey,
		RoundName:      bm.RoundName,
		BracketIndex:   bm.OrderInRound,
		Order:          bm.Order,
		Status:         models.MatchPending,
		IdempotencyKey: bm.UID,
	}
	if bm.PlayerA != nil {
		m.PlayerAID, m.PlayerAName = bm.PlayerA.UserID, bm.PlayerA.Name
	}
	if bm.PlayerB != nil {
		m.PlayerBID, m.PlayerBName = bm.PlayerB.UserID, bm.PlayerB.Name
	}
	if m.IsComplete() {
		deadline := s.now().Add(s.matchWindow)
		m.Deadline = &deadline
	}
	return m
}

func toEntrants(participants []*models.Participant) []brackets.Entrant {
	entrants := make([]brackets.Entrant, 0, len(participants))
	for _, p := range participants {
		entrants = append(entrants, brackets.Entrant{UserID: p.UserID, Name: p.DisplayName})
	}
	return entrants
}

func translateGeneratorError(err error) error {
	switch {
	case errors.Is(err, brackets.ErrNotEnoughEntrants):
		return ErrNotEnoughParticipants
	case errors.Is(err, brackets.ErrTooManyEntrants):
		return ErrTooManyParticipants
	}
	return err
}
