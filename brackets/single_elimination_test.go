package brackets

import (
	"context"
	"testing"

	"github.com/Dosada05/competition-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOrder(t *testing.T) {
	assert.Equal(t, []int{0, 1}, seedOrder(2))
	assert.Equal(t, []int{0, 3, 1, 2}, seedOrder(4))
	assert.Equal(t, []int{0, 7, 3, 4, 1, 6, 2, 5}, seedOrder(8))
}

func TestSingleElimination_PowerOfTwo(t *testing.T) {
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		TournamentID: "t1",
		Entrants:     entrants("s1", "s2", "s3", "s4"),
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, Semi, matches[0].RoundName)
	assert.Equal(t, "s1", matches[0].PlayerA.UserID)
	assert.Equal(t, "s4", matches[0].PlayerB.UserID)
	assert.Equal(t, "s2", matches[1].PlayerA.UserID)
	assert.Equal(t, "s3", matches[1].PlayerB.UserID)
	assert.Equal(t, "t1:knockout:Semi:1", matches[1].UID)
	for _, m := range matches {
		assert.False(t, m.IsBye)
		assert.Equal(t, models.StageKnockout, m.Stage)
	}
}

func TestSingleElimination_ByesGoToTopSeeds(t *testing.T) {
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		TournamentID: "t1",
		Entrants:     entrants("s1", "s2", "s3", "s4", "s5"),
	})
	require.NoError(t, err)
	require.Len(t, matches, 4)

	byes := map[string]bool{}
	real := 0
	for _, m := range matches {
		assert.Equal(t, Quarter, m.RoundName)
		if m.IsBye {
			byes[m.ByeEntrant.UserID] = true
			assert.Nil(t, m.PlayerB)
			continue
		}
		real++
		assert.Equal(t, "s4", m.PlayerA.UserID)
		assert.Equal(t, "s5", m.PlayerB.UserID)
	}
	assert.Equal(t, 1, real)
	assert.Equal(t, map[string]bool{"s1": true, "s2": true, "s3": true}, byes)
}

func TestSingleElimination_Limits(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	_, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{Entrants: entrants("solo")})
	assert.ErrorIs(t, err, ErrNotEnoughEntrants)

	many := make([]string, 17)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	_, err = gen.GenerateBracket(context.Background(), GenerateBracketParams{Entrants: entrants(many...)})
	assert.ErrorIs(t, err, ErrTooManyEntrants)

	final, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{TournamentID: "t", Entrants: entrants("x", "y")})
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, Final, final[0].RoundName)

	sixteen, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{TournamentID: "t", Entrants: entrants(many[:16]...)})
	require.NoError(t, err)
	assert.Len(t, sixteen, 8)
	assert.Equal(t, RoundOf16, sixteen[0].RoundName)
}
