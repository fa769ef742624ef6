package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/competition-engine/models"
)

const byeUserID = "bye"

var ErrNotEnoughEntrants = errors.New("not enough entrants (minimum 2 required)")

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

func MatchdayName(round int) string {
	return fmt.Sprintf("Matchday %d", round)
}

// GenerateBracket builds a single round-robin schedule with the circle method:
// entrant 0 stays fixed, the rest rotate by one position each round.
// Pairings against the synthetic bye are skipped.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	if len(params.Entrants) < 2 {
		return nil, fmt.Errorf("RoundRobinGenerator: %w (found %d)", ErrNotEnoughEntrants, len(params.Entrants))
	}

	players := make([]Entrant, len(params.Entrants))
	copy(players, params.Entrants)
	if len(players)%2 != 0 {
		players = append(players, Entrant{UserID: byeUserID, Name: "BYE"})
	}

	n := len(players)
	rounds := n - 1
	half := n / 2

	stage := models.StageLeague
	if params.GroupKey != "" {
		stage = models.StageGroup
	}

	matches := make([]*BracketMatch, 0, rounds*half)
	order := 0
	for r := 0; r < rounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < half; i++ {
			a := players[i]
			b := players[n-1-i]
			if a.UserID == byeUserID || b.UserID == byeUserID {
				continue
			}
			matches = append(matches, &BracketMatch{
				UID:          roundRobinUID(params.TournamentID, params.GroupKey, r+1, i),
				Stage:        stage,
				GroupKey:     params.GroupKey,
				Round:        r + 1,
				RoundName:    MatchdayName(r + 1),
				OrderInRound: i,
				Order:        order,
				PlayerA:      &a,
				PlayerB:      &b,
			})
			order++
		}

		// последний встаёт на позицию 1, нулевой остаётся на месте
		last := players[n-1]
		copy(players[2:], players[1:n-1])
		players[1] = last
	}

	return matches, nil
}

// MergeGroupSchedules объединяет расписания групп: тур, затем группа, затем пара.
// Order переназначается сквозным.
func MergeGroupSchedules(schedules map[string][]*BracketMatch) []*BracketMatch {
	merged := make([]*BracketMatch, 0)
	for _, ms := range schedules {
		merged = append(merged, ms...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		x, y := merged[i], merged[j]
		if x.Round != y.Round {
			return x.Round < y.Round
		}
		if x.GroupKey != y.GroupKey {
			return x.GroupKey < y.GroupKey
		}
		return x.OrderInRound < y.OrderInRound
	})
	for i, m := range merged {
		m.Order = i
	}
	return merged
}

func roundRobinUID(tournamentID, groupKey string, round, pairing int) string {
	if groupKey == "" {
		return fmt.Sprintf("%s:league:%d:%d", tournamentID, round, pairing)
	}
	return fmt.Sprintf("%s:group:%s:%d:%d", tournamentID, groupKey, round, pairing)
}
