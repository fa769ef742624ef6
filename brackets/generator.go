package brackets

import (
	"context"

	"github.com/Dosada05/competition-engine/models"
)

// Entrant - участник сетки. UserID непрозрачен для генераторов.
type Entrant struct {
	UserID string
	Name   string
}

type GenerateBracketParams struct {
	TournamentID string
	GroupKey     string    // пусто для лиги и плей-офф
	Entrants     []Entrant // порядок значим: генераторы детерминированы
}

// BracketMatch - матч, рассчитанный генератором, но ещё не сохранённый.
type BracketMatch struct {
	UID          string // ключ идемпотентности
	Stage        models.MatchStage
	GroupKey     string
	Round        int // с 1
	RoundName    string
	OrderInRound int
	Order        int

	PlayerA *Entrant
	PlayerB *Entrant

	IsBye      bool
	ByeEntrant *Entrant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}
