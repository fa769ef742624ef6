package models

// StandingRow - строка турнирной таблицы. Не хранится, всегда пересчитывается.
type StandingRow struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	GroupKey     string `json:"group_key,omitempty"`
	Played       int    `json:"played"`
	Won          int    `json:"won"`
	Drawn        int    `json:"drawn"`
	Lost         int    `json:"lost"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
	GoalDiff     int    `json:"goal_difference"`
	Points       int    `json:"points"`
	Qualified    bool   `json:"qualified,omitempty"`
}

type GroupTable struct {
	GroupKey string        `json:"group_key"`
	Rows     []StandingRow `json:"rows"`
}
