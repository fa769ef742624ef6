// Package standings считает турнирную таблицу по полной истории подтверждённых матчей.
package standings

import (
	"sort"

	"github.com/Dosada05/competition-engine/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	PointsWin  = 3
	PointsDraw = 1
	PointsLoss = 0
)

// Calculate builds the ranked table for the given participants. Only confirmed matches
// between two listed participants count. Input slices are never modified.
func Calculate(participants []*models.Participant, matches []*models.Match) []models.StandingRow {
	rows := make(map[string]*models.StandingRow, len(participants))
	order := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == nil {
			continue
		}
		if _, dup := rows[p.UserID]; dup {
			continue
		}
		rows[p.UserID] = &models.StandingRow{
			UserID:   p.UserID,
			Name:     p.DisplayName,
			GroupKey: p.Group(),
		}
		order = append(order, p.UserID)
	}

	for _, m := range matches {
		if m == nil || m.Status != models.MatchConfirmed {
			continue
		}
		a, okA := rows[m.PlayerAID]
		b, okB := rows[m.PlayerBID]
		if !okA || !okB || a == b {
			continue
		}
		apply(a, b, m.Score.A, m.Score.B)
	}

	table := make([]models.StandingRow, 0, len(order))
	for _, id := range order {
		r := rows[id]
		r.GoalDiff = r.GoalsFor - r.GoalsAgainst
		table = append(table, *r)
	}

	sortRows(table)
	for i := range table {
		table[i].Rank = i + 1
	}
	return table
}

// CalculateGroups считает таблицу отдельно для каждой группы и отмечает
// первые qualifiersPerGroup строк как вышедшие из группы.
func CalculateGroups(participants []*models.Participant, matches []*models.Match, qualifiersPerGroup int) []models.GroupTable {
	byGroup := make(map[string][]*models.Participant)
	for _, p := range participants {
		if p == nil || p.Group() == "" {
			continue
		}
		byGroup[p.Group()] = append(byGroup[p.Group()], p)
	}

	keys := make([]string, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tables := make([]models.GroupTable, 0, len(keys))
	for _, key := range keys {
		rows := Calculate(byGroup[key], matches)
		for i := range rows {
			rows[i].Qualified = i < qualifiersPerGroup
		}
		tables = append(tables, models.GroupTable{GroupKey: key, Rows: rows})
	}
	return tables
}

func apply(a, b *models.StandingRow, scoreA, scoreB int) {
	a.Played++
	b.Played++
	a.GoalsFor += scoreA
	a.GoalsAgainst += scoreB
	b.GoalsFor += scoreB
	b.GoalsAgainst += scoreA

	switch {
	case scoreA > scoreB:
		a.Won++
		b.Lost++
		a.Points += PointsWin
		b.Points += PointsLoss
	case scoreA < scoreB:
		b.Won++
		a.Lost++
		b.Points += PointsWin
		a.Points += PointsLoss
	default:
		a.Drawn++
		b.Drawn++
		a.Points += PointsDraw
		b.Points += PointsDraw
	}
}

func sortRows(rows []models.StandingRow) {
	// collate.Collator держит внутренние буферы, поэтому создаётся на каждый вызов.
	col := collate.New(language.Und)
	sort.SliceStable(rows, func(i, j int) bool {
		x, y := rows[i], rows[j]
		if x.Points != y.Points {
			return x.Points > y.Points
		}
		if x.GoalDiff != y.GoalDiff {
			return x.GoalDiff > y.GoalDiff
		}
		if x.GoalsFor != y.GoalsFor {
			return x.GoalsFor > y.GoalsFor
		}
		if c := col.CompareString(x.Name, y.Name); c != 0 {
			return c < 0
		}
		return x.UserID < y.UserID
	})
}
