package models

import (
	"slices"
	"time"
)

// TournamentFormat определяет, как строится сетка турнира.
type TournamentFormat string

const (
	FormatLeague        TournamentFormat = "League"
	FormatKnockout      TournamentFormat = "Knockout"
	FormatGroupKnockout TournamentFormat = "GroupKnockout"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatLeague, FormatKnockout, FormatGroupKnockout:
		return true
	}
	return false
}

// TournamentStatus представляет статусы турнира.
type TournamentStatus string

const (
	StatusRegistrationOpen TournamentStatus = "RegistrationOpen"
	StatusLive             TournamentStatus = "Live"
	StatusCompleted        TournamentStatus = "Completed"
)

const DefaultQualifiersPerGroup = 2

// Tournament представляет турнир.
type Tournament struct {
	ID                 string           `json:"id" db:"id"`
	Name               string           `json:"name" db:"name"`
	Slug               string           `json:"slug" db:"slug"`
	Format             TournamentFormat `json:"format" db:"format"`
	Status             TournamentStatus `json:"status" db:"status"`
	MaxPlayers         int              `json:"max_players" db:"max_players"`
	PlayerCount        int              `json:"player_count" db:"player_count"`
	QualifiersPerGroup int              `json:"qualifiers_per_group" db:"qualifiers_per_group"`
	OwnerID            string           `json:"owner_id" db:"owner_id"`
	AdminIDs           []string         `json:"admin_ids" db:"admin_ids"`
	PrizeAmount        int64            `json:"prize_amount" db:"prize_amount"` // minor units
	WinnerID           *string          `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

// IsAdmin сообщает, может ли пользователь выполнять административные действия в турнире.
func (t *Tournament) IsAdmin(userID string) bool {
	if t == nil || userID == "" {
		return false
	}
	return t.OwnerID == userID || slices.Contains(t.AdminIDs, userID)
}

func (t *Tournament) HasGroups() bool {
	return t != nil && t.Format == FormatGroupKnockout
}
