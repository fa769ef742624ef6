package handlers

import (
	"net/http"

	"github.com/Dosada05/competition-engine/services"
)

// AdminHandler управляет списком администраторов турнира.
type AdminHandler struct {
	tournamentService services.TournamentService
}

func NewAdminHandler(ts services.TournamentService) *AdminHandler {
	return &AdminHandler{tournamentService: ts}
}

type grantAdminRequest struct {
	UserID string `json:"user_id"`
}

// Grant обрабатывает POST /tournaments/{tournamentID}/admins
func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !authorizeAdmin(w, r, h.tournamentService, tournamentID) {
		return
	}

	var input grantAdminRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GrantAdmin(r.Context(), tournamentID, input.UserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Revoke обрабатывает DELETE /tournaments/{tournamentID}/admins/{userID}
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !authorizeAdmin(w, r, h.tournamentService, tournamentID) {
		return
	}

	if _, err := h.tournamentService.RevokeAdmin(r.Context(), tournamentID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
