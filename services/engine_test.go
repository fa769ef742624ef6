package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/storage"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func (p *fakePresence) set(tournamentID, userID string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[tournamentID+"/"+userID] = online
}

func (p *fakePresence) IsOnline(_ context.Context, tournamentID, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[tournamentID+"/"+userID], nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyTournament(_ string, messageType string, _ interface{}) {
	n.mu.Lock()
	n.events = append(n.events, messageType)
	n.mu.Unlock()
}

func (n *recordingNotifier) count(messageType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == messageType {
			c++
		}
	}
	return c
}

type engine struct {
	store        repositories.Store
	clock        *testClock
	presence     *fakePresence
	notifier     *recordingNotifier
	uploader     *storage.MemoryUploader
	tournaments  TournamentService
	participants ParticipantService
	fixtures     FixtureService
	matches      MatchService
	standings    StandingsService
	sweeper      AutoResolveService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineWithStore(t, repositories.NewMemoryStore())
}

func newEngineWithStore(t *testing.T, store repositories.Store) *engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &testClock{t: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
	cfg := EngineConfig{StrikeBanThreshold: 3, ForfeitScore: 3, MatchWindow: 24 * time.Hour, Now: clock.Now}

	e := &engine{
		store:    store,
		clock:    clock,
		presence: &fakePresence{online: map[string]bool{}},
		notifier: &recordingNotifier{},
		uploader: storage.NewMemoryUploader("https://cdn.test"),
	}
	e.standings = NewStandingsService(store)
	archiver := NewArchiveService(store, e.standings, e.uploader, logger)
	e.tournaments = NewTournamentService(store, logger)
	e.participants = NewParticipantService(store, logger)
	e.fixtures = NewFixtureService(store, e.notifier, cfg, logger)
	e.matches = NewMatchService(store, e.presence, e.notifier, archiver, cfg, logger)
	e.sweeper = NewAutoResolveService(store, e.matches, 2, cfg, logger)
	return e
}

// tournament создаёт турнир и одобряет игроков в переданном порядке.
func (e *engine) tournament(t *testing.T, format models.TournamentFormat, players ...string) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tour, err := e.tournaments.CreateTournament(ctx, "owner", CreateTournamentInput{
		Name:        "Cup " + string(format) + " " + time.Now().Format(time.RFC3339Nano),
		Format:      format,
		MaxPlayers:  16,
		PrizeAmount: 10000,
	})
	require.NoError(t, err)
	for _, p := range players {
		e.join(t, tour.ID, p)
	}
	return tour
}

func (e *engine) join(t *testing.T, tournamentID, userID string) *models.Participant {
	t.Helper()
	ctx := context.Background()
	p, err := e.participants.RequestJoin(ctx, tournamentID, userID, userID)
	require.NoError(t, err)
	p, err = e.participants.ApproveParticipant(ctx, p.ID)
	require.NoError(t, err)
	return p
}

func (e *engine) participant(t *testing.T, tournamentID, userID string) *models.Participant {
	t.Helper()
	p, err := e.store.Repos().Participants.GetByTournamentAndUser(context.Background(), tournamentID, userID)
	require.NoError(t, err)
	return p
}

func (e *engine) readyBoth(t *testing.T, m *models.Match) {
	t.Helper()
	ctx := context.Background()
	_, err := e.matches.ToggleReady(ctx, m.ID, m.PlayerAID)
	require.NoError(t, err)
	_, err = e.matches.ToggleReady(ctx, m.ID, m.PlayerBID)
	require.NoError(t, err)
}

// play проводит матч целиком: готовность, счёт от игрока A, подтверждение игроком B.
func (e *engine) play(t *testing.T, m *models.Match, a, b int) *models.Match {
	t.Helper()
	ctx := context.Background()
	e.readyBoth(t, m)
	_, err := e.matches.SubmitScore(ctx, m.ID, m.PlayerAID, models.Score{A: a, B: b})
	require.NoError(t, err)
	confirmed, err := e.matches.ConfirmScore(ctx, m.ID, m.PlayerBID)
	require.NoError(t, err)
	return confirmed
}

func (e *engine) listMatches(t *testing.T, tournamentID string, filter repositories.MatchFilter) []*models.Match {
	t.Helper()
	ms, err := e.matches.ListMatches(context.Background(), tournamentID, filter)
	require.NoError(t, err)
	return ms
}

func (e *engine) round(t *testing.T, tournamentID, round string) []*models.Match {
	t.Helper()
	return e.listMatches(t, tournamentID, repositories.MatchFilter{RoundName: &round})
}

func (e *engine) getTournament(t *testing.T, id string) *models.Tournament {
	t.Helper()
	tour, err := e.tournaments.GetTournament(context.Background(), id)
	require.NoError(t, err)
	return tour
}

func opponent(m *models.Match, userID string) string {
	if m.PlayerAID == userID {
		return m.PlayerBID
	}
	return m.PlayerAID
}

// disputeAgainst: submitter присылает победный для себя счёт, соперник его оспаривает.
func (e *engine) disputeAgainst(t *testing.T, m *models.Match, submitter string) {
	t.Helper()
	ctx := context.Background()
	e.readyBoth(t, m)
	score := models.Score{A: 9, B: 0}
	if m.PlayerBID == submitter {
		score = models.Score{A: 0, B: 9}
	}
	_, err := e.matches.SubmitScore(ctx, m.ID, submitter, score)
	require.NoError(t, err)
	_, err = e.matches.DisputeScore(ctx, m.ID, opponent(m, submitter))
	require.NoError(t, err)
}

func (e *engine) playerMatches(t *testing.T, tournamentID, userID string) []*models.Match {
	t.Helper()
	var out []*models.Match
	for _, m := range e.listMatches(t, tournamentID, repositories.MatchFilter{}) {
		if m.HasPlayer(userID) {
			out = append(out, m)
		}
	}
	return out
}

func (e *engine) addStrikes(t *testing.T, participantID string, n int) *models.Participant {
	t.Helper()
	var p *models.Participant
	for i := 0; i < n; i++ {
		var err error
		p, err = e.matches.AdminAddStrike(context.Background(), participantID)
		require.NoError(t, err)
	}
	return p
}
