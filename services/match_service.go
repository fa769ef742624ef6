package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/competition-engine/brackets"
	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/policies"
	"github.com/Dosada05/competition-engine/repositories"
)

// PresenceChecker сообщает, находится ли игрок онлайн в комнате турнира.
type PresenceChecker interface {
	IsOnline(ctx context.Context, tournamentID, userID string) (bool, error)
}

// EventNotifier публикует события турнира подписчикам (websocket-комнате).
type EventNotifier interface {
	NotifyTournament(tournamentID, messageType string, payload interface{})
}

// ResultsArchiver сохраняет итоги завершённого турнира.
type ResultsArchiver interface {
	ArchiveTournament(ctx context.Context, tournamentID string) error
}

// EngineConfig - настраиваемые параметры правил.
type EngineConfig struct {
	StrikeBanThreshold int
	ForfeitScore       int
	MatchWindow        time.Duration
	Now                func() time.Time
}

const DefaultMatchWindow = 24 * time.Hour

func (c EngineConfig) withDefaults() EngineConfig {
	if c.StrikeBanThreshold <= 0 {
		c.StrikeBanThreshold = policies.DefaultStrikeBanThreshold
	}
	if c.ForfeitScore <= 0 {
		c.ForfeitScore = policies.DefaultForfeitScore
	}
	if c.MatchWindow <= 0 {
		c.MatchWindow = DefaultMatchWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID string, filter repositories.MatchFilter) ([]*models.Match, error)
	ToggleReady(ctx context.Context, matchID, actorID string) (*models.Match, error)
	SubmitScore(ctx context.Context, matchID, submitterID string, score models.Score) (*models.Match, error)
	ConfirmScore(ctx context.Context, matchID, actorID string) (*models.Match, error)
	DisputeScore(ctx context.Context, matchID, actorID string) (*models.Match, error)
	AdminForceConfirm(ctx context.Context, matchID string) (*models.Match, error)
	AdminOverrideScore(ctx context.Context, matchID string, score models.Score) (*models.Match, error)
	AdminClearStrikes(ctx context.Context, participantID string) (*models.Participant, error)
	AdminAddStrike(ctx context.Context, participantID string) (*models.Participant, error)
	// AutoResolve applies the auto-resolution policy to one match. The bool is false
	// when the match was not due and nothing changed.
	AutoResolve(ctx context.Context, matchID string) (*models.Match, bool, error)
	IsPlayerBanned(ctx context.Context, matchID, playerID string) (bool, error)
}

type matchService struct {
	store       repositories.Store
	presence    PresenceChecker
	notifier    EventNotifier
	archiver    ResultsArchiver
	disputes    policies.DisputePolicy
	autoResolve policies.AutoResolvePolicy
	progression *progression
	logger      *slog.Logger
	now         func() time.Time
}

func NewMatchService(
	store repositories.Store,
	presence PresenceChecker,
	notifier EventNotifier,
	archiver ResultsArchiver,
	cfg EngineConfig,
	logger *slog.Logger,
) MatchService {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		store:       store,
		presence:    presence,
		notifier:    notifier,
		archiver:    archiver,
		disputes:    policies.NewDisputePolicy(cfg.StrikeBanThreshold),
		autoResolve: policies.NewAutoResolvePolicy(cfg.ForfeitScore),
		progression: &progression{now: cfg.Now, matchWindow: cfg.MatchWindow},
		logger:      logger,
		now:         cfg.Now,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := s.store.Repos().Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return m, nil
}

func (s *matchService) ListMatches(ctx context.Context, tournamentID string, filter repositories.MatchFilter) ([]*models.Match, error) {
	if _, err := s.store.Repos().Tournaments.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	matches, err := s.store.Repos().Matches.ListByTournament(ctx, tournamentID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %s: %w", tournamentID, err)
	}
	return matches, nil
}

func (s *matchService) ToggleReady(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, "toggle_ready", func(ctx context.Context, tx repositories.Repositories, m *models.Match) error {
		if m.HasPlayer(actorID) {
			banned, err := bannedFromMatch(ctx, tx, m.ID, actorID)
			if err != nil {
				return err
			}
			if banned {
				return ErrPlayerBanned
			}
		}
		return applyToggleReady(m, actorID)
	})
}

func (s *matchService) SubmitScore(ctx context.Context, matchID, submitterID string, score models.Score) (*models.Match, error) {
	return s.mutate(ctx, matchID, "submit_score", func(ctx context.Context, tx repositories.Repositories, m *models.Match) error {
		if err := applySubmitScore(m, submitterID, score, s.now()); err != nil {
			return err
		}
		submitter, err := tx.Participants.GetByTournamentAndUser(ctx, m.TournamentID, submitterID)
		if err != nil {
			return handleRepositoryError(err)
		}
		return handleRepositoryError(tx.Participants.IncrementAccuracyTotal(ctx, submitter.ID))
	})
}

func (s *matchService) ConfirmScore(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, "confirm_score", func(ctx context.Context, tx repositories.Repositories, m *models.Match) error {
		if err := applyConfirmScore(m, actorID, s.now()); err != nil {
			return err
		}
		submitter, err := tx.Participants.GetByTournamentAndUser(ctx, m.TournamentID, m.SubmittedBy)
		if err != nil {
			return handleRepositoryError(err)
		}
		return handleRepositoryError(tx.Participants.IncrementAccuracyConfirmed(ctx, submitter.ID))
	})
}

func (s *matchService) DisputeScore(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, "dispute_score", func(ctx context.Context, tx repositories.Repositories, m *models.Match) error {
		if err := applyDisputeScore(m, actorID, s.now()); err != nil {
			return err
		}
		return s.strikeSubmitter(ctx, tx, m)
	})
}

// strikeSubmitter начисляет штраф автору оспоренного счёта (никогда не оспорившему).
func (s *matchService) strikeSubmitter(ctx context.Context, tx repositories.Repositories, m *models.Match) error {
	submitter, err := tx.Participants.GetByTournamentAndUser(ctx, m.TournamentID, m.SubmittedBy)
	if err != nil {
		return handleRepositoryError(err)
	}
	return s.addStrike(ctx, tx, submitter, m.Order)
}

// addStrike увеличивает счётчик штрафов. С порога игрок получает бан на следующий матч
// с порядком больше afterOrder.
func (s *matchService) addStrike(ctx context.Context, tx repositories.Repositories, p *models.Participant, afterOrder int) error {
	strikes, err := tx.Participants.IncrementStrikes(ctx, p.ID)
	if err != nil {
		return handleRepositoryError(err)
	}
	outcome := s.disputes.RegisterDispute(strikes - 1)
	if !outcome.BannedNextMatch {
		return nil
	}
	if !p.BannedNextMatch {
		if err := tx.Participants.SetBanned(ctx, p.ID, true); err != nil {
			return handleRepositoryError(err)
		}
	}
	s.logger.Info("player banned from next match",
		slog.String("tournament_id", p.TournamentID),
		slog.String("user_id", p.UserID),
		slog.Int("strikes", outcome.Strikes))
	return s.banFromNextMatch(ctx, tx, p.TournamentID, p.UserID, afterOrder)
}

// banFromNextMatch создаёт бан на ближайший ожидающий матч игрока после afterOrder,
// если активного бана ещё нет. Когда такого матча пока нет (следующий раунд плей-офф),
// бан создаётся без матча и привязывается, как только игрок попадёт в матч.
func (s *matchService) banFromNextMatch(ctx context.Context, tx repositories.Repositories, tournamentID, userID string, afterOrder int) error {
	existing, err := tx.Bans.ListByPlayer(ctx, tournamentID, userID)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if !b.Used {
			return nil
		}
	}

	pending := models.MatchPending
	upcoming, err := tx.Matches.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Status: &pending})
	if err != nil {
		return err
	}
	matchID := ""
	for _, next := range upcoming {
		if next.Order > afterOrder && next.HasPlayer(userID) {
			matchID = next.ID
			break
		}
	}
	ban := policies.NewBan(tournamentID, userID, matchID, "", s.now())
	if err := tx.Bans.Create(ctx, ban); err != nil && !errors.Is(err, repositories.ErrBanConflict) {
		return fmt.Errorf("failed to create ban for user %s: %w", userID, err)
	}
	return nil
}

func (s *matchService) AdminForceConfirm(ctx context.Context, matchID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, "admin_force_confirm", func(_ context.Context, _ repositories.Repositories, m *models.Match) error {
		return applyAdminForceConfirm(m, s.now())
	})
}

func (s *matchService) AdminOverrideScore(ctx context.Context, matchID string, score models.Score) (*models.Match, error) {
	return s.mutate(ctx, matchID, "admin_override_score", func(_ context.Context, _ repositories.Repositories, m *models.Match) error {
		return applyAdminOverrideScore(m, score, s.now())
	})
}

// AdminClearStrikes обнуляет штрафы и снимает все ещё не отбытые баны участника.
func (s *matchService) AdminClearStrikes(ctx context.Context, participantID string) (*models.Participant, error) {
	var (
		cleared *models.Participant
		revoked int
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		p, err := tx.Participants.GetByID(ctx, participantID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := tx.Participants.ClearStrikes(ctx, p.ID); err != nil {
			return handleRepositoryError(err)
		}
		if revoked, err = tx.Bans.RevokeUnused(ctx, p.TournamentID, p.UserID); err != nil {
			return err
		}
		cleared, err = tx.Participants.GetByID(ctx, p.ID)
		return handleRepositoryError(err)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("strikes cleared",
		slog.String("participant_id", participantID),
		slog.String("tournament_id", cleared.TournamentID),
		slog.Int("bans_revoked", revoked))
	return cleared, nil
}

// AdminAddStrike начисляет штраф вручную по тем же правилам, что и оспоренный счёт.
func (s *matchService) AdminAddStrike(ctx context.Context, participantID string) (*models.Participant, error) {
	var updated *models.Participant
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		p, err := tx.Participants.GetByID(ctx, participantID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if p.Status != models.ParticipantApproved {
			return fmt.Errorf("%w: participant is not approved", ErrPreconditionFailed)
		}
		if err := s.addStrike(ctx, tx, p, -1); err != nil {
			return err
		}
		updated, err = tx.Participants.GetByID(ctx, p.ID)
		return handleRepositoryError(err)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("strike added by admin",
		slog.String("participant_id", participantID),
		slog.Int("strikes", updated.Strikes))
	return updated, nil
}

func (s *matchService) IsPlayerBanned(ctx context.Context, matchID, playerID string) (bool, error) {
	return bannedFromMatch(ctx, s.store.Repos(), matchID, playerID)
}

func bannedFromMatch(ctx context.Context, repos repositories.Repositories, matchID, playerID string) (bool, error) {
	bans, err := repos.Bans.ListByMatch(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("failed to load bans for match %s: %w", matchID, err)
	}
	return policies.IsPlayerBanned(bans, playerID, matchID), nil
}

var errNotDue = errors.New("match is not due for auto-resolution")

func (s *matchService) AutoResolve(ctx context.Context, matchID string) (*models.Match, bool, error) {
	now := s.now()
	current, err := s.store.Repos().Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, false, handleRepositoryError(err)
	}
	if !s.autoResolve.Due(current, now) || !s.canJudge(current) {
		return current, false, nil
	}

	presence, err := s.presenceFor(ctx, current)
	if err != nil {
		return nil, false, err
	}

	var resolution policies.Resolution
	m, err := s.mutate(ctx, matchID, "auto_resolve", func(_ context.Context, _ repositories.Repositories, m *models.Match) error {
		res, due := s.autoResolve.Evaluate(m, presence, now)
		if !due || !s.canJudge(m) {
			return errNotDue
		}
		resolution = res
		if m.IsKnockout() && res.IsDraw() {
			// ничья в плей-офф не применяется, матч ждёт решения админа
			m.AutoReason = string(policies.ReasonAwaitingAdmin)
			return nil
		}
		return applyAutoResolution(m, res, now)
	})
	if errors.Is(err, errNotDue) {
		fresh, getErr := s.GetMatch(ctx, matchID)
		return fresh, false, getErr
	}
	if err != nil {
		return nil, false, err
	}
	if m.AutoReason == models.AutoAwaitingAdmin {
		s.logger.Warn("knockout match cannot be auto-resolved, awaiting admin",
			slog.String("match_id", m.ID),
			slog.String("reason", string(resolution.Reason)))
		return m, false, nil
	}
	s.logger.Info("match auto-resolved",
		slog.String("match_id", m.ID),
		slog.String("reason", string(resolution.Reason)),
		slog.Int("score_a", m.Score.A),
		slog.Int("score_b", m.Score.B))
	return m, true, nil
}

// canJudge: без источника присутствия ожидающий матч не разрешается, исход зависит от того, кто онлайн.
func (s *matchService) canJudge(m *models.Match) bool {
	return s.presence != nil || m.Status != models.MatchPending
}

// presenceFor снимает присутствие обоих игроков. Игрок с активным баном на матч считается отсутствующим.
func (s *matchService) presenceFor(ctx context.Context, m *models.Match) (policies.Presence, error) {
	var presence policies.Presence
	if s.presence != nil {
		var err error
		if presence.AOnline, err = s.presence.IsOnline(ctx, m.TournamentID, m.PlayerAID); err != nil {
			return presence, fmt.Errorf("failed to check presence of %s: %w", m.PlayerAID, err)
		}
		if presence.BOnline, err = s.presence.IsOnline(ctx, m.TournamentID, m.PlayerBID); err != nil {
			return presence, fmt.Errorf("failed to check presence of %s: %w", m.PlayerBID, err)
		}
	}
	bans, err := s.store.Repos().Bans.ListByMatch(ctx, m.ID)
	if err != nil {
		return presence, fmt.Errorf("failed to load bans for match %s: %w", m.ID, err)
	}
	if policies.IsPlayerBanned(bans, m.PlayerAID, m.ID) {
		presence.AOnline = false
	}
	if policies.IsPlayerBanned(bans, m.PlayerBID, m.ID) {
		presence.BOnline = false
	}
	return presence, nil
}

type transitionFunc func(ctx context.Context, tx repositories.Repositories, m *models.Match) error

// mutate загружает матч, применяет переход и записывает его с проверкой версии.
// Последствия подтверждения выполняются в той же транзакции.
func (s *matchService) mutate(ctx context.Context, matchID, op string, fn transitionFunc) (*models.Match, error) {
	var (
		result    *models.Match
		completed bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		m, err := tx.Matches.GetByID(ctx, matchID)
		if err != nil {
			return handleRepositoryError(err)
		}
		expectedVersion := m.Version
		wasConfirmed := m.Status == models.MatchConfirmed

		if err := fn(ctx, tx, m); err != nil {
			return err
		}
		if err := tx.Matches.Update(ctx, m, expectedVersion); err != nil {
			return handleRepositoryError(err)
		}
		if !wasConfirmed && m.Status == models.MatchConfirmed {
			if completed, err = s.onConfirmed(ctx, tx, m); err != nil {
				return err
			}
		}
		result = m
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNotDue) {
			s.logger.Warn("match transition rejected", slog.String("op", op), slog.String("match_id", matchID), slog.Any("error", err))
		}
		return nil, err
	}

	s.afterCommit(ctx, result, completed)
	return result, nil
}

// onConfirmed гасит баны на матч, продвигает сетку и завершает лигу.
func (s *matchService) onConfirmed(ctx context.Context, tx repositories.Repositories, m *models.Match) (bool, error) {
	bans, err := tx.Bans.ListByMatch(ctx, m.ID)
	if err != nil {
		return false, err
	}
	for _, b := range bans {
		if policies.ConsumeBan(b, s.now()) {
			if err := tx.Bans.MarkUsed(ctx, b.ID, *b.UsedAt); err != nil {
				return false, fmt.Errorf("failed to consume ban %s: %w", b.ID, err)
			}
		}
	}

	switch m.Stage {
	case models.StageKnockout:
		return s.progression.advance(ctx, tx, m)
	case models.StageLeague:
		return s.progression.completeLeagueIfFinished(ctx, tx, m.TournamentID)
	}
	return false, nil
}

func (s *matchService) afterCommit(ctx context.Context, m *models.Match, completed bool) {
	if s.notifier != nil {
		s.notifier.NotifyTournament(m.TournamentID, brackets.MessageMatchUpdated, m)
	}
	if !completed {
		return
	}
	s.logger.Info("tournament completed", slog.String("tournament_id", m.TournamentID), slog.String("final_match_id", m.ID))
	if s.notifier != nil {
		s.notifier.NotifyTournament(m.TournamentID, brackets.MessageTournamentUpdated, map[string]string{
			"tournament_id": m.TournamentID,
			"status":        string(models.StatusCompleted),
		})
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveTournament(context.WithoutCancel(ctx), m.TournamentID); err != nil {
			s.logger.Error("failed to archive tournament results", slog.String("tournament_id", m.TournamentID), slog.Any("error", err))
		}
	}
}
