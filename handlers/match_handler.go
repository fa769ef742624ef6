package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/services"
)

type MatchHandler struct {
	matchService      services.MatchService
	tournamentService services.TournamentService
}

func NewMatchHandler(ms services.MatchService, ts services.TournamentService) *MatchHandler {
	return &MatchHandler{
		matchService:      ms,
		tournamentService: ts,
	}
}

type scoreRequest struct {
	ScoreA *int `json:"score_a"`
	ScoreB *int `json:"score_b"`
}

func (req scoreRequest) score() (models.Score, error) {
	if req.ScoreA == nil || req.ScoreB == nil {
		return models.Score{}, errors.New("score_a and score_b are required")
	}
	return models.Score{A: *req.ScoreA, B: *req.ScoreB}, nil
}

// ListByTournamentHandler обрабатывает GET /tournaments/{tournamentID}/matches
func (h *MatchHandler) ListByTournamentHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var filter repositories.MatchFilter
	if stage := optionalQuery(r, "stage"); stage != nil {
		s := models.MatchStage(*stage)
		filter.Stage = &s
	}
	if status := optionalQuery(r, "status"); status != nil {
		s := models.MatchStatus(*status)
		filter.Status = &s
	}
	filter.RoundName = optionalQuery(r, "round")
	filter.GroupKey = optionalQuery(r, "group")

	matches, err := h.matchService.ListMatches(r.Context(), tournamentID, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler обрабатывает GET /matches/{matchID}
func (h *MatchHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BanStatusHandler обрабатывает GET /matches/{matchID}/bans/{userID}
func (h *MatchHandler) BanStatusHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.matchService.GetMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	banned, err := h.matchService.IsPlayerBanned(r.Context(), matchID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match_id": matchID, "user_id": userID, "banned": banned}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Действия игроков: готовность, счёт, подтверждение, спор.

func (h *MatchHandler) ToggleReadyHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.matchService.ToggleReady)
}

func (h *MatchHandler) ConfirmScoreHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.matchService.ConfirmScore)
}

func (h *MatchHandler) DisputeScoreHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.matchService.DisputeScore)
}

// SubmitScoreHandler обрабатывает POST /matches/{matchID}/score
func (h *MatchHandler) SubmitScoreHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input scoreRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	score, err := input.score()
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SubmitScore(r.Context(), matchID, currentUserID, score)
	h.respondMatch(w, r, match, err)
}

// ForceConfirmHandler обрабатывает POST /matches/{matchID}/force-confirm
func (h *MatchHandler) ForceConfirmHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.adminMatch(w, r)
	if !ok {
		return
	}
	match, err := h.matchService.AdminForceConfirm(r.Context(), matchID)
	h.respondMatch(w, r, match, err)
}

// OverrideScoreHandler обрабатывает POST /matches/{matchID}/override
func (h *MatchHandler) OverrideScoreHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.adminMatch(w, r)
	if !ok {
		return
	}

	var input scoreRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	score, err := input.score()
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.AdminOverrideScore(r.Context(), matchID, score)
	h.respondMatch(w, r, match, err)
}

// AutoResolveHandler обрабатывает POST /matches/{matchID}/auto-resolve
func (h *MatchHandler) AutoResolveHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := h.adminMatch(w, r)
	if !ok {
		return
	}

	match, resolved, err := h.matchService.AutoResolve(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match, "resolved": resolved}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type playerActionFunc func(ctx context.Context, matchID, actorID string) (*models.Match, error)

func (h *MatchHandler) playerAction(w http.ResponseWriter, r *http.Request, action playerActionFunc) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, ok := currentUser(w, r)
	if !ok {
		return
	}

	match, err := action(r.Context(), matchID, currentUserID)
	h.respondMatch(w, r, match, err)
}

// adminMatch находит турнир матча и проверяет права админа.
func (h *MatchHandler) adminMatch(w http.ResponseWriter, r *http.Request) (string, bool) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return "", false
	}
	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return "", false
	}
	if !authorizeAdmin(w, r, h.tournamentService, match.TournamentID) {
		return "", false
	}
	return matchID, true
}

func (h *MatchHandler) respondMatch(w http.ResponseWriter, r *http.Request, match *models.Match, err error) {
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
