package models

import "time"

type MatchStatus string

const (
	MatchPending             MatchStatus = "pending"
	MatchPendingConfirmation MatchStatus = "pending_confirmation"
	MatchConfirmed           MatchStatus = "confirmed"
	MatchDisputed            MatchStatus = "disputed"
)

// MatchStage указывает, к какой части турнира относится матч.
type MatchStage string

const (
	StageLeague   MatchStage = "league"
	StageGroup    MatchStage = "group"
	StageKnockout MatchStage = "knockout"
)

const (
	ConfirmedByAdmin    = "admin"
	ConfirmedByOverride = "admin_override"
	ConfirmedByAuto     = "auto"
)

// AutoAwaitingAdmin помечает просроченный матч, который нельзя разрешить автоматически
// (ничья в плей-офф). Такой матч ждёт решения админа и не попадает в обход.
const AutoAwaitingAdmin = "awaiting_admin"

type Score struct {
	A int `json:"a"`
	B int `json:"b"`
}

type Match struct {
	ID             string      `json:"id" db:"id"`
	TournamentID   string      `json:"tournament_id" db:"tournament_id"`
	Stage          MatchStage  `json:"stage" db:"stage"`
	GroupKey       string      `json:"group_key,omitempty" db:"group_key"`
	PlayerAID      string      `json:"player_a_id" db:"player_a_id"` // "" пока слот ждёт победителя
	PlayerAName    string      `json:"player_a_name" db:"player_a_name"`
	PlayerBID      string      `json:"player_b_id" db:"player_b_id"`
	PlayerBName    string      `json:"player_b_name" db:"player_b_name"`
	RoundName      string      `json:"round_name" db:"round_name"`
	BracketIndex   int         `json:"bracket_index" db:"bracket_index"`
	Order          int         `json:"order" db:"match_order"`
	Status         MatchStatus `json:"status" db:"status"`
	Score          Score       `json:"score" db:"-"`
	ReadyA         bool        `json:"ready_a" db:"ready_a"`
	ReadyB         bool        `json:"ready_b" db:"ready_b"`
	SubmittedBy    string      `json:"submitted_by,omitempty" db:"submitted_by"`
	SubmittedAt    *time.Time  `json:"submitted_at,omitempty" db:"submitted_at"`
	ConfirmedBy    string      `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt    *time.Time  `json:"confirmed_at,omitempty" db:"confirmed_at"`
	DisputedBy     string      `json:"disputed_by,omitempty" db:"disputed_by"`
	DisputedAt     *time.Time  `json:"disputed_at,omitempty" db:"disputed_at"`
	Deadline       *time.Time  `json:"deadline,omitempty" db:"deadline"`
	AutoResolved   bool        `json:"auto_resolved" db:"auto_resolved"`
	AutoReason     string      `json:"auto_reason,omitempty" db:"auto_reason"`
	IdempotencyKey string      `json:"-" db:"idempotency_key"`
	Version        int         `json:"version" db:"version"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// HasPlayer сообщает, участвует ли пользователь в матче.
func (m *Match) HasPlayer(userID string) bool {
	if userID == "" {
		return false
	}
	return m.PlayerAID == userID || m.PlayerBID == userID
}

// IsComplete сообщает, заняты ли оба слота.
func (m *Match) IsComplete() bool {
	return m.PlayerAID != "" && m.PlayerBID != ""
}

func (m *Match) IsKnockout() bool {
	return m.Stage == StageKnockout
}

// Clone возвращает независимую копию матча.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.SubmittedAt = cloneTime(m.SubmittedAt)
	c.ConfirmedAt = cloneTime(m.ConfirmedAt)
	c.DisputedAt = cloneTime(m.DisputedAt)
	c.Deadline = cloneTime(m.Deadline)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
