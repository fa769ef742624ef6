// Package policies содержит чистые правила движка: штрафы за оспоренные счёты,
// баны на следующий матч и автоматическое разрешение просроченных матчей.
package policies

import (
	"time"

	"github.com/Dosada05/competition-engine/models"
)

const (
	DefaultStrikeBanThreshold = 3
	DefaultBanReason          = "3 disputed score submissions"
)

// DisputePolicy начисляет штрафы автору оспоренного счёта.
type DisputePolicy struct {
	BanThreshold int
}

func NewDisputePolicy(threshold int) DisputePolicy {
	if threshold <= 0 {
		threshold = DefaultStrikeBanThreshold
	}
	return DisputePolicy{BanThreshold: threshold}
}

type DisputeOutcome struct {
	Strikes         int  `json:"strikes"`
	BannedNextMatch bool `json:"banned_next_match"`
}

// RegisterDispute returns the submitter's new strike count and ban flag.
func (p DisputePolicy) RegisterDispute(currentStrikes int) DisputeOutcome {
	if currentStrikes < 0 {
		currentStrikes = 0
	}
	strikes := currentStrikes + 1
	return DisputeOutcome{Strikes: strikes, BannedNextMatch: p.IsBanned(strikes)}
}

func (p DisputePolicy) IsBanned(strikes int) bool {
	return strikes >= p.BanThreshold
}

// NewBan создаёт неиспользованный бан игрока на конкретный матч.
// Пустой matchID означает, что следующего матча ещё нет и бан ждёт привязки.
func NewBan(tournamentID, playerID, matchID, reason string, now time.Time) *models.Ban {
	if reason == "" {
		reason = DefaultBanReason
	}
	return &models.Ban{
		TournamentID: tournamentID,
		PlayerID:     playerID,
		MatchID:      matchID,
		Reason:       reason,
		CreatedAt:    now,
	}
}

// IsPlayerBanned is true only if an unused ban exists for exactly this match.
func IsPlayerBanned(bans []*models.Ban, playerID, matchID string) bool {
	if matchID == "" {
		return false
	}
	for _, b := range bans {
		if b != nil && !b.Used && b.PlayerID == playerID && b.MatchID == matchID {
			return true
		}
	}
	return false
}

// AwaitingMatch reports whether the ban is unused and not yet tied to a match.
func AwaitingMatch(b *models.Ban) bool {
	return b != nil && !b.Used && b.MatchID == ""
}

// ConsumeBan помечает бан использованным. Повторный вызов ничего не меняет.
func ConsumeBan(ban *models.Ban, now time.Time) bool {
	if ban == nil || ban.Used {
		return false
	}
	ban.Used = true
	at := now
	ban.UsedAt = &at
	return true
}
