package models

import "time"

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantApproved ParticipantStatus = "approved"
)

type Participant struct {
	ID                string            `json:"id" db:"id"`
	TournamentID      string            `json:"tournament_id" db:"tournament_id"`
	UserID            string            `json:"user_id" db:"user_id"`
	DisplayName       string            `json:"display_name" db:"display_name"`
	Status            ParticipantStatus `json:"status" db:"status"`
	GroupKey          *string           `json:"group_key,omitempty" db:"group_key"`
	Strikes           int               `json:"strikes" db:"strikes"`
	BannedNextMatch   bool              `json:"banned_next_match" db:"banned_next_match"`
	AccuracyTotal     int               `json:"accuracy_total" db:"accuracy_total"`
	AccuracyConfirmed int               `json:"accuracy_confirmed" db:"accuracy_confirmed"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

func (p *Participant) Group() string {
	if p == nil || p.GroupKey == nil {
		return ""
	}
	return *p.GroupKey
}
