package services

import (
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/policies"
)

// Чистые переходы конечного автомата матча. Каждая функция либо меняет матч
// и возвращает nil, либо возвращает ошибку и не трогает матч.
//
//	pending -> pending_confirmation -> confirmed
//	                                -> disputed -> confirmed (только админ)

func validateScore(m *models.Match, score models.Score) error {
	if score.A < 0 || score.B < 0 {
		return ErrNegativeScore
	}
	if m.IsKnockout() && score.A == score.B {
		return ErrKnockoutDraw
	}
	return nil
}

func applyToggleReady(m *models.Match, actor string) error {
	if !m.HasPlayer(actor) {
		return ErrNotMatchParticipant
	}
	if m.Status != models.MatchPending {
		return ErrMatchNotPending
	}
	if !m.IsComplete() {
		return ErrOpponentSlotEmpty
	}
	if m.PlayerAID == actor {
		m.ReadyA = !m.ReadyA
	} else {
		m.ReadyB = !m.ReadyB
	}
	return nil
}

func applySubmitScore(m *models.Match, submitter string, score models.Score, now time.Time) error {
	if !m.HasPlayer(submitter) {
		return ErrNotMatchParticipant
	}
	if m.Status != models.MatchPending {
		if m.Status == models.MatchConfirmed {
			return ErrMatchAlreadyConfirmed
		}
		return ErrMatchNotPending
	}
	if !m.ReadyA || !m.ReadyB {
		return ErrPlayersNotReady
	}
	if err := validateScore(m, score); err != nil {
		return err
	}
	m.Score = score
	m.Status = models.MatchPendingConfirmation
	m.SubmittedBy = submitter
	at := now
	m.SubmittedAt = &at
	return nil
}

func checkResponder(m *models.Match, actor string) error {
	if m.Status != models.MatchPendingConfirmation {
		if m.Status == models.MatchConfirmed {
			return ErrMatchAlreadyConfirmed
		}
		return ErrMatchNotAwaitingConfirmation
	}
	if !m.HasPlayer(actor) {
		return ErrNotMatchParticipant
	}
	if actor == m.SubmittedBy {
		return ErrSubmitterCannotRespond
	}
	return nil
}

func applyConfirmScore(m *models.Match, actor string, now time.Time) error {
	if err := checkResponder(m, actor); err != nil {
		return err
	}
	markConfirmed(m, actor, now)
	return nil
}

func applyDisputeScore(m *models.Match, actor string, now time.Time) error {
	if err := checkResponder(m, actor); err != nil {
		return err
	}
	m.Status = models.MatchDisputed
	m.DisputedBy = actor
	at := now
	m.DisputedAt = &at
	return nil
}

func applyAdminForceConfirm(m *models.Match, now time.Time) error {
	if m.Status != models.MatchDisputed {
		if m.Status == models.MatchConfirmed {
			return ErrMatchAlreadyConfirmed
		}
		return ErrMatchNotDisputed
	}
	if m.IsKnockout() && m.Score.A == m.Score.B {
		return ErrKnockoutDraw
	}
	markConfirmed(m, models.ConfirmedByAdmin, now)
	return nil
}

func applyAdminOverrideScore(m *models.Match, score models.Score, now time.Time) error {
	if m.Status == models.MatchConfirmed {
		return ErrMatchAlreadyConfirmed
	}
	if !m.IsComplete() {
		return ErrOpponentSlotEmpty
	}
	if err := validateScore(m, score); err != nil {
		return err
	}
	m.Score = score
	if m.AutoReason == models.AutoAwaitingAdmin {
		m.AutoReason = ""
	}
	markConfirmed(m, models.ConfirmedByOverride, now)
	return nil
}

func applyAutoResolution(m *models.Match, res policies.Resolution, now time.Time) error {
	if err := validateScore(m, res.Score); err != nil {
		return err
	}
	m.Score = res.Score
	m.AutoResolved = true
	m.AutoReason = string(res.Reason)
	markConfirmed(m, models.ConfirmedByAuto, now)
	return nil
}

func markConfirmed(m *models.Match, by string, now time.Time) {
	m.Status = models.MatchConfirmed
	m.ConfirmedBy = by
	at := now
	m.ConfirmedAt = &at
}
