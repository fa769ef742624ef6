package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/competition-engine/brackets"
	"github.com/Dosada05/competition-engine/handlers"
	"github.com/Dosada05/competition-engine/middleware"
	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("routes-test-secret")

type apiServer struct {
	t      *testing.T
	router *chi.Mux
	hub    *brackets.Hub
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := brackets.NewHub(logger)
	go hub.Run(ctx)

	cfg := services.EngineConfig{}
	tournamentService := services.NewTournamentService(store, logger)
	participantService := services.NewParticipantService(store, logger)
	standingsService := services.NewStandingsService(store)
	fixtureService := services.NewFixtureService(store, hub, cfg, logger)
	matchService := services.NewMatchService(store, hub, hub, nil, cfg, logger)

	router := chi.NewRouter()
	SetupRoutes(router,
		Options{JWTSecret: secret, AllowedOrigins: []string{"*"}},
		handlers.NewTournamentHandler(tournamentService, fixtureService, standingsService),
		handlers.NewParticipantHandler(participantService, tournamentService, matchService),
		handlers.NewMatchHandler(matchService, tournamentService),
		handlers.NewAdminHandler(tournamentService),
		handlers.NewWebSocketHandler(hub, tournamentService, []string{"*"}, logger),
	)
	return &apiServer{t: t, router: router, hub: hub}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, userID, strings.ToUpper(userID), time.Hour)
	require.NoError(t, err)
	return tok
}

// do выполняет запрос от имени пользователя ("" - анонимно) и раскладывает ответ в out.
func (s *apiServer) do(method, path, userID string, body interface{}, out interface{}) int {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(s.t, userID))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type tournamentEnvelope struct {
	Tournament models.Tournament `json:"tournament"`
}

type participantEnvelope struct {
	Participant models.Participant `json:"participant"`
}

type matchEnvelope struct {
	Match models.Match `json:"match"`
}

type matchesEnvelope struct {
	Matches []models.Match `json:"matches"`
}

type errorEnvelope struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func TestLeagueFlowOverHTTP(t *testing.T) {
	s := newAPIServer(t)

	var created tournamentEnvelope
	code := s.do(http.MethodPost, "/tournaments", "", map[string]interface{}{"name": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code = s.do(http.MethodPost, "/tournaments", "owner", map[string]interface{}{
		"name": "HTTP Cup", "format": "League", "max_players": 4, "prize_amount": 500,
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	tid := created.Tournament.ID
	assert.Equal(t, "http-cup", created.Tournament.Slug)

	for _, user := range []string{"p1", "p2"} {
		var joined participantEnvelope
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments/"+tid+"/participants", user, map[string]string{}, &joined))
		assert.Equal(t, strings.ToUpper(user), joined.Participant.DisplayName)

		path := "/tournaments/" + tid + "/participants/" + joined.Participant.ID + "/approve"
		assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, path, user, nil, nil))
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, path, "owner", nil, nil))
	}

	var errResp errorEnvelope
	code = s.do(http.MethodPost, "/tournaments/"+tid+"/participants", "p1", map[string]string{"display_name": "again"}, &errResp)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, errResp.Retryable)

	var fixtures matchesEnvelope
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/tournaments/"+tid+"/fixtures", "owner", nil, &fixtures))
	require.Len(t, fixtures.Matches, 1)
	m := fixtures.Matches[0]
	matchPath := "/matches/" + m.ID

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, matchPath+"/ready", "stranger", nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/ready", m.PlayerAID, nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/ready", m.PlayerBID, nil, nil))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, matchPath+"/score", m.PlayerAID, map[string]int{"score_a": 2}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, matchPath+"/score", m.PlayerAID, map[string]int{"score_a": -1, "score_b": 0}, nil))

	var submitted matchEnvelope
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/score", m.PlayerAID, map[string]int{"score_a": 2, "score_b": 1}, &submitted))
	assert.Equal(t, models.MatchPendingConfirmation, submitted.Match.Status)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, matchPath+"/confirm", m.PlayerAID, nil, nil))
	var confirmed matchEnvelope
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/confirm", m.PlayerBID, nil, &confirmed))
	assert.Equal(t, models.MatchConfirmed, confirmed.Match.Status)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, matchPath+"/score", m.PlayerAID, map[string]int{"score_a": 0, "score_b": 0}, nil))

	var tour tournamentEnvelope
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/tournaments/"+tid, "", nil, &tour))
	assert.Equal(t, models.StatusCompleted, tour.Tournament.Status)
	require.NotNil(t, tour.Tournament.WinnerID)
	assert.Equal(t, m.PlayerAID, *tour.Tournament.WinnerID)

	var standings struct {
		Standings services.StandingsView `json:"standings"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/tournaments/"+tid+"/standings", "", nil, &standings))
	require.Len(t, standings.Standings.Table, 2)
	assert.Equal(t, 3, standings.Standings.Table[0].Points)

	var payouts struct {
		Payouts []models.Payout `json:"payouts"`
	}
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/tournaments/"+tid+"/payouts", "p1", nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/tournaments/"+tid+"/payouts", "owner", nil, &payouts))
	require.Len(t, payouts.Payouts, 1)
	assert.Equal(t, int64(500), payouts.Payouts[0].Amount)
}

func TestAdminsAndLookups(t *testing.T) {
	s := newAPIServer(t)

	var created tournamentEnvelope
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments", "owner", map[string]interface{}{
		"name": "Admin Cup", "format": "Knockout", "max_players": 8,
	}, &created))
	tid := created.Tournament.ID

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, "/tournaments/"+tid+"/status", "helper", map[string]string{"status": "Live"}, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/tournaments/"+tid+"/admins", "owner", map[string]string{"user_id": "helper"}, nil))

	var updated tournamentEnvelope
	code := s.do(http.MethodPatch, "/tournaments/"+tid+"/status", "helper", map[string]string{"status": "Completed"}, nil)
	assert.Equal(t, http.StatusConflict, code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, "/tournaments/"+tid+"/status", "helper", map[string]string{"status": "Live"}, &updated))
	assert.Equal(t, models.StatusLive, updated.Tournament.Status)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/tournaments/"+tid+"/admins/helper", "owner", nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/tournaments/"+tid+"/fixtures", "helper", nil, nil))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/tournaments/missing", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/matches/missing", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/matches/missing/override", "owner", map[string]int{"score_a": 1, "score_b": 0}, nil))

	var list struct {
		Tournaments []models.Tournament `json:"tournaments"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/tournaments?status=Live", "", nil, &list))
	assert.Len(t, list.Tournaments, 1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/tournaments?limit=0", "", nil, nil))
}

func TestParticipantStrikesOverHTTP(t *testing.T) {
	s := newAPIServer(t)

	var created tournamentEnvelope
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments", "owner", map[string]interface{}{
		"name": "Strike Cup", "format": "League", "max_players": 4,
	}, &created))
	tid := created.Tournament.ID

	var joined participantEnvelope
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments/"+tid+"/participants", "p1", map[string]string{}, &joined))
	base := "/tournaments/" + tid + "/participants/" + joined.Participant.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/approve", "owner", nil, nil))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, base+"/strikes", "p1", nil, nil))

	var struck participantEnvelope
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/strikes", "owner", nil, &struck))
	}
	assert.Equal(t, 3, struck.Participant.Strikes)
	assert.True(t, struck.Participant.BannedNextMatch)

	var cleared participantEnvelope
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/clear-strikes", "owner", nil, &cleared))
	assert.Zero(t, cleared.Participant.Strikes)
	assert.False(t, cleared.Participant.BannedNextMatch)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/tournaments/"+tid+"/participants/missing/strikes", "owner", nil, nil))
}

func TestWebSocketPresence(t *testing.T) {
	s := newAPIServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	var created tournamentEnvelope
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments", "owner", map[string]interface{}{
		"name": "Presence Cup", "format": "League", "max_players": 4,
	}, &created))
	tid := created.Tournament.ID

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/tournaments/" + tid
	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token(t, "p1"), nil)
	require.NoError(t, err)

	online := func() bool {
		ok, err := s.hub.IsOnline(context.Background(), tid, "p1")
		return err == nil && ok
	}
	assert.Eventually(t, online, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return !online() }, 2*time.Second, 10*time.Millisecond)
}
