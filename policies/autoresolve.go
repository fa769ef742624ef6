package policies

import (
	"time"

	"github.com/Dosada05/competition-engine/models"
)

const DefaultForfeitScore = 3

type ResolutionReason string

const (
	ReasonOpponentAbsent         ResolutionReason = "opponent_absent"
	ReasonBothAbsent             ResolutionReason = "both_absent"
	ReasonNoSubmission           ResolutionReason = "no_submission"
	ReasonSubmissionUnchallenged ResolutionReason = "submission_unchallenged"
	ReasonAwaitingAdmin          ResolutionReason = models.AutoAwaitingAdmin
)

// Presence - снимок присутствия обоих игроков на момент проверки.
type Presence struct {
	AOnline bool
	BOnline bool
}

type Resolution struct {
	Score  models.Score     `json:"score"`
	Reason ResolutionReason `json:"reason"`
}

func (r Resolution) IsDraw() bool {
	return r.Score.A == r.Score.B
}

type AutoResolvePolicy struct {
	ForfeitScore int
}

func NewAutoResolvePolicy(forfeitScore int) AutoResolvePolicy {
	if forfeitScore <= 0 {
		forfeitScore = DefaultForfeitScore
	}
	return AutoResolvePolicy{ForfeitScore: forfeitScore}
}

// Due reports whether the match is eligible for auto-resolution at now.
func (p AutoResolvePolicy) Due(m *models.Match, now time.Time) bool {
	if m == nil || m.Deadline == nil || m.AutoResolved || m.AutoReason == models.AutoAwaitingAdmin {
		return false
	}
	if now.Before(*m.Deadline) {
		return false
	}
	if !m.IsComplete() {
		return false
	}
	return m.Status == models.MatchPending || m.Status == models.MatchPendingConfirmation
}

// Evaluate returns the outcome for a due match, or false when the match is not due.
func (p AutoResolvePolicy) Evaluate(m *models.Match, presence Presence, now time.Time) (Resolution, bool) {
	if !p.Due(m, now) {
		return Resolution{}, false
	}

	if m.Status == models.MatchPendingConfirmation {
		return Resolution{Score: m.Score, Reason: ReasonSubmissionUnchallenged}, true
	}

	switch {
	case presence.AOnline && !presence.BOnline:
		return Resolution{Score: models.Score{A: p.ForfeitScore, B: 0}, Reason: ReasonOpponentAbsent}, true
	case !presence.AOnline && presence.BOnline:
		return Resolution{Score: models.Score{A: 0, B: p.ForfeitScore}, Reason: ReasonOpponentAbsent}, true
	case !presence.AOnline && !presence.BOnline:
		return Resolution{Reason: ReasonBothAbsent}, true
	default:
		return Resolution{Reason: ReasonNoSubmission}, true
	}
}
