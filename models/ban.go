package models

import "time"

// Ban запрещает игроку участвовать в конкретном следующем матче.
type Ban struct {
	ID           string     `json:"id" db:"id"`
	TournamentID string     `json:"tournament_id" db:"tournament_id"`
	PlayerID     string     `json:"player_id" db:"player_id"`
	MatchID      string     `json:"match_id" db:"match_id"`
	Reason       string     `json:"reason" db:"reason"`
	Used         bool       `json:"used" db:"used"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UsedAt       *time.Time `json:"used_at,omitempty" db:"used_at"`
}
