package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/competition-engine/brackets"
	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/policies"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/standings"
)

// progression продвигает победителей по сетке и завершает турнир.
// Все методы работают внутри транзакции вызывающего.
type progression struct {
	now         func() time.Time
	matchWindow time.Duration
}

// advance переносит победителя подтверждённого матча плей-офф в следующий раунд.
// Возвращает true, если финал завершил турнир.
func (p *progression) advance(ctx context.Context, tx repositories.Repositories, m *models.Match) (bool, error) {
	winnerID, winnerName, err := brackets.Winner(m)
	if err != nil {
		return false, ErrKnockoutDraw
	}
	if m.RoundName == brackets.Final {
		return true, p.completeTournament(ctx, tx, m.TournamentID, winnerID)
	}
	slot, ok := brackets.NextSlot(m.RoundName, m.BracketIndex)
	if !ok {
		return false, fmt.Errorf("unknown knockout round %q for match %s", m.RoundName, m.ID)
	}
	return false, p.fillSlot(ctx, tx, m.TournamentID, slot, winnerID, winnerName)
}

// fillSlot создаёт матч следующего раунда или занимает его свободную сторону.
func (p *progression) fillSlot(ctx context.Context, tx repositories.Repositories, tournamentID string, slot brackets.Slot, userID, name string) error {
	key := brackets.SlotKey(tournamentID, slot.Round, slot.Index)
	next, err := tx.Matches.GetByKey(ctx, key)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		next = &models.Match{
			TournamentID:   tournamentID,
			Stage:          models.StageKnockout,
			RoundName:      slot.Round,
			BracketIndex:   slot.Index,
			Order:          brackets.KnockoutOrder(slot.Round, slot.Index),
			Status:         models.MatchPending,
			IdempotencyKey: key,
		}
		setSide(next, slot.SideA, userID, name)
		created, err := tx.Matches.Create(ctx, next)
		if err != nil {
			return fmt.Errorf("failed to create %s slot %d: %w", slot.Round, slot.Index, err)
		}
		if !created {
			return fmt.Errorf("%w: slot %s created concurrently", ErrConflictRetry, key)
		}
		return attachPendingBan(ctx, tx, tournamentID, userID, next.ID)
	}
	if err != nil {
		return handleRepositoryError(err)
	}

	occupant := next.PlayerBID
	if slot.SideA {
		occupant = next.PlayerAID
	}
	if occupant == userID {
		return nil
	}
	if occupant != "" {
		return fmt.Errorf("%w: slot %s side already taken", ErrPreconditionFailed, key)
	}

	expected := next.Version
	setSide(next, slot.SideA, userID, name)
	if next.IsComplete() && next.Deadline == nil {
		deadline := p.now().Add(p.matchWindow)
		next.Deadline = &deadline
	}
	if err := tx.Matches.Update(ctx, next, expected); err != nil {
		return handleRepositoryError(err)
	}
	return attachPendingBan(ctx, tx, tournamentID, userID, next.ID)
}

// attachPendingBan привязывает ожидающий бан игрока к матчу, в который он только что попал.
func attachPendingBan(ctx context.Context, tx repositories.Repositories, tournamentID, userID, matchID string) error {
	bans, err := tx.Bans.ListByPlayer(ctx, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("failed to load bans of %s: %w", userID, err)
	}
	for _, b := range bans {
		if !policies.AwaitingMatch(b) {
			continue
		}
		if err := tx.Bans.AssignMatch(ctx, b.ID, matchID); err != nil {
			return fmt.Errorf("failed to assign ban %s to match %s: %w", b.ID, matchID, err)
		}
		return nil
	}
	return nil
}

func setSide(m *models.Match, sideA bool, userID, name string) {
	if sideA {
		m.PlayerAID, m.PlayerAName = userID, name
		return
	}
	m.PlayerBID, m.PlayerBName = userID, name
}

// completeTournament фиксирует победителя и создаёт единственную выплату.
func (p *progression) completeTournament(ctx context.Context, tx repositories.Repositories, tournamentID, winnerID string) error {
	t, err := tx.Tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if t.Status != models.StatusLive {
		return ErrTournamentNotLive
	}
	if err := tx.Tournaments.Complete(ctx, tournamentID, winnerID); err != nil {
		return handleRepositoryError(err)
	}
	payout := &models.Payout{
		TournamentID: tournamentID,
		UserID:       winnerID,
		Amount:       t.PrizeAmount,
		Status:       models.PayoutPending,
	}
	if err := tx.Payouts.Create(ctx, payout); err != nil {
		if errors.Is(err, repositories.ErrPayoutConflict) {
			return fmt.Errorf("%w: payout already recorded", ErrConflictRetry)
		}
		return err
	}
	return nil
}

// completeLeagueIfFinished завершает лигу, когда подтверждён последний матч.
func (p *progression) completeLeagueIfFinished(ctx context.Context, tx repositories.Repositories, tournamentID string) (bool, error) {
	stage := models.StageLeague
	matches, err := tx.Matches.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Stage: &stage})
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}
	for _, m := range matches {
		if m.Status != models.MatchConfirmed {
			return false, nil
		}
	}

	approved := models.ParticipantApproved
	participants, err := tx.Participants.ListByTournament(ctx, tournamentID, &approved)
	if err != nil {
		return false, err
	}
	table := standings.Calculate(participants, matches)
	if len(table) == 0 {
		return false, nil
	}
	return true, p.completeTournament(ctx, tx, tournamentID, table[0].UserID)
}
