package brackets

import (
	"errors"
	"fmt"

	"github.com/Dosada05/competition-engine/models"
)

const (
	RoundOf16 = "Round16"
	Quarter   = "Quarter"
	Semi      = "Semi"
	Final     = "Final"
)

var ErrDrawNotAllowed = errors.New("knockout match cannot end in a draw")

var nextRound = map[string]string{
	RoundOf16: Quarter,
	Quarter:   Semi,
	Semi:      Final,
}

var roundRank = map[string]int{
	RoundOf16: 1,
	Quarter:   2,
	Semi:      3,
	Final:     4,
}

// knockoutOrderBase keeps knockout matches after any league or group fixtures.
const knockoutOrderBase = 10000

func NextRound(round string) (string, bool) {
	next, ok := nextRound[round]
	return next, ok
}

func IsKnockoutRound(round string) bool {
	_, ok := roundRank[round]
	return ok
}

// RoundNameForMatches names a round by how many matches it holds.
func RoundNameForMatches(count int) (string, bool) {
	switch count {
	case 8:
		return RoundOf16, true
	case 4:
		return Quarter, true
	case 2:
		return Semi, true
	case 1:
		return Final, true
	}
	return "", false
}

func KnockoutOrder(round string, index int) int {
	return knockoutOrderBase + roundRank[round]*100 + index
}

func SlotKey(tournamentID, round string, index int) string {
	return fmt.Sprintf("%s:knockout:%s:%d", tournamentID, round, index)
}

// Slot указывает, куда попадает победитель матча.
type Slot struct {
	Round string
	Index int
	SideA bool
}

// NextSlot returns the next-round slot fed by the match at (round, index).
func NextSlot(round string, index int) (Slot, bool) {
	next, ok := NextRound(round)
	if !ok {
		return Slot{}, false
	}
	return Slot{Round: next, Index: index / 2, SideA: index%2 == 0}, true
}

// Winner returns the winning player of a decided knockout match.
func Winner(m *models.Match) (id, name string, err error) {
	switch {
	case m.Score.A > m.Score.B:
		return m.PlayerAID, m.PlayerAName, nil
	case m.Score.B > m.Score.A:
		return m.PlayerBID, m.PlayerBName, nil
	}
	return "", "", ErrDrawNotAllowed
}
