package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/competition-engine/models"
)

const MaxKnockoutEntrants = 16

var ErrTooManyEntrants = fmt.Errorf("knockout bracket supports at most %d entrants", MaxKnockoutEntrants)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds the first knockout round. Entrants are taken as seeds in the
// given order; byes go to the top seeds and are returned with IsBye set so the caller
// can place the entrant straight into the next round.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	entrants := params.Entrants
	n := len(entrants)

	if n < 2 {
		return nil, fmt.Errorf("SingleEliminationGenerator: %w (found %d)", ErrNotEnoughEntrants, n)
	}
	if n > MaxKnockoutEntrants {
		return nil, fmt.Errorf("SingleEliminationGenerator: %w (found %d)", ErrTooManyEntrants, n)
	}

	size := bracketSize(n)
	roundName, ok := RoundNameForMatches(size / 2)
	if !ok {
		return nil, errors.New("SingleEliminationGenerator: unsupported bracket size")
	}

	seeds := seedOrder(size)
	matches := make([]*BracketMatch, 0, size/2)
	for k := 0; k < size/2; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s1, s2 := seeds[2*k], seeds[2*k+1]
		bm := &BracketMatch{
			UID:          SlotKey(params.TournamentID, roundName, k),
			Stage:        models.StageKnockout,
			Round:        1,
			RoundName:    roundName,
			OrderInRound: k,
			Order:        KnockoutOrder(roundName, k),
		}

		switch {
		case s1 < n && s2 < n:
			a, b := entrants[s1], entrants[s2]
			bm.PlayerA, bm.PlayerB = &a, &b
		case s1 < n:
			a := entrants[s1]
			bm.IsBye, bm.ByeEntrant, bm.PlayerA = true, &a, &a
		case s2 < n:
			b := entrants[s2]
			bm.IsBye, bm.ByeEntrant, bm.PlayerA = true, &b, &b
		default:
			return nil, fmt.Errorf("unexpected empty pairing at position %d for %d entrants", k, n)
		}
		matches = append(matches, bm)
	}

	return matches, nil
}

func bracketSize(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// seedOrder возвращает позиции посева в стандартной сетке: 1-8, 4-5, 2-7, 3-6 и т.д.
func seedOrder(size int) []int {
	order := []int{0}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		total := len(order) * 2
		for _, s := range order {
			next = append(next, s, total-1-s)
		}
		order = next
	}
	return order
}
