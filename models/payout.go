package models

import "time"

type PayoutStatus string

const PayoutPending PayoutStatus = "pending"

type Payout struct {
	ID           string       `json:"id" db:"id"`
	TournamentID string       `json:"tournament_id" db:"tournament_id"`
	UserID       string       `json:"user_id" db:"user_id"`
	Amount       int64        `json:"amount" db:"amount"`
	Status       PayoutStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
