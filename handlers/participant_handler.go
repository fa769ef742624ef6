package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/competition-engine/middleware"
	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
	tournamentService  services.TournamentService
	matchService       services.MatchService
}

func NewParticipantHandler(ps services.ParticipantService, ts services.TournamentService, ms services.MatchService) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: ps,
		tournamentService:  ts,
		matchService:       ms,
	}
}

type joinRequest struct {
	DisplayName string `json:"display_name"`
}

// Join godoc
// @Summary Подать заявку на участие в турнире
// @Tags participants
// @Description Пользователь подаёт заявку от своего имени. Без display_name берётся имя из токена.
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 201 {object} map[string]interface{} "Заявка создана"
// @Failure 400 {object} map[string]string "Ошибка валидации"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Failure 409 {object} map[string]string "Уже зарегистрирован / Регистрация закрыта / Турнир полон"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants [post]
func (h *ParticipantHandler) Join(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input joinRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	if input.DisplayName == "" {
		input.DisplayName = middleware.GetUserNameFromContext(r.Context())
	}

	participant, err := h.participantService.RequestJoin(r.Context(), tournamentID, currentUserID, input.DisplayName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List godoc
// @Summary Список участников турнира
// @Tags participants
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param status query string false "pending | approved"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /tournaments/{tournamentID}/participants [get]
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.ParticipantStatus
	if raw := optionalQuery(r, "status"); raw != nil {
		s := models.ParticipantStatus(*raw)
		if s != models.ParticipantPending && s != models.ParticipantApproved {
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
		status = &s
	}

	participants, err := h.participantService.ListParticipants(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Approve godoc
// @Summary Одобрить заявку
// @Tags participants
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param participantID path string true "Participant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 409 {object} map[string]string "Турнир полон / заявка уже обработана"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants/{participantID}/approve [post]
func (h *ParticipantHandler) Approve(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.adminParticipant(w, r)
	if !ok {
		return
	}

	participant, err := h.participantService.ApproveParticipant(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type assignGroupRequest struct {
	GroupKey string `json:"group_key"`
}

// AssignGroup godoc
// @Summary Назначить группу участнику
// @Tags participants
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param participantID path string true "Participant ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants/{participantID}/group [put]
func (h *ParticipantHandler) AssignGroup(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.adminParticipant(w, r)
	if !ok {
		return
	}

	var input assignGroupRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.AssignGroup(r.Context(), participantID, input.GroupKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearStrikes godoc
// @Summary Сбросить штрафы участника
// @Tags participants
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param participantID path string true "Participant ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants/{participantID}/clear-strikes [post]
func (h *ParticipantHandler) ClearStrikes(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.adminParticipant(w, r)
	if !ok {
		return
	}

	participant, err := h.matchService.AdminClearStrikes(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AddStrike обрабатывает POST /tournaments/{tournamentID}/participants/{participantID}/strikes
func (h *ParticipantHandler) AddStrike(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.adminParticipant(w, r)
	if !ok {
		return
	}

	participant, err := h.matchService.AdminAddStrike(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// adminParticipant проверяет права админа и что заявка принадлежит турниру из URL.
func (h *ParticipantHandler) adminParticipant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return "", false
	}
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return "", false
	}
	if !authorizeAdmin(w, r, h.tournamentService, tournamentID) {
		return "", false
	}

	participant, err := h.participantService.GetParticipant(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return "", false
	}
	if participant.TournamentID != tournamentID {
		notFoundResponse(w, r)
		return "", false
	}
	return participantID, true
}
