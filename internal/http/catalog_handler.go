package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/calvuzs3/qdue-server/internal/application"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

type catalogService interface {
	CreateTeam(ctx context.Context, principal application.Principal, input application.TeamInput) (schedule.Team, error)
	UpdateTeam(ctx context.Context, principal application.Principal, teamID string, input application.TeamInput) (schedule.Team, error)
	ListTeams(ctx context.Context, principal application.Principal) ([]schedule.Team, error)
	DeleteTeam(ctx context.Context, principal application.Principal, teamID string) error
	CreateShift(ctx context.Context, principal application.Principal, input application.ShiftInput) (schedule.Shift, error)
	UpdateShift(ctx context.Context, principal application.Principal, shiftID string, input application.ShiftInput) (schedule.Shift, error)
	ListShifts(ctx context.Context, principal application.Principal) ([]schedule.Shift, error)
	DeleteShift(ctx context.Context, principal application.Principal, shiftID string) error
}

// CatalogHandler serves the team and shift catalog endpoints.
type CatalogHandler struct {
	service   catalogService
	responder responder
	logger    *slog.Logger
}

func NewCatalogHandler(service catalogService, logger *slog.Logger) *CatalogHandler {
	base := defaultLogger(logger)
	return &CatalogHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CatalogHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CatalogHandler", operation, attrs...)
}

func (h *CatalogHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateTeam", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode team request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateTeam", "principal_id", principal.UserID)

	team, err := h.service.CreateTeam(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "team creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("team_id", team.ID).InfoContext(r.Context(), "team created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, teamResponse{Team: toTeamDTO(team)})
}

func (h *CatalogHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	teamID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(teamID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateTeam", "principal_id", principal.UserID, "team_id", teamID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode team update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateTeam", "principal_id", principal.UserID, "team_id", teamID)

	team, err := h.service.UpdateTeam(r.Context(), principal, teamID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "team update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "team updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, teamResponse{Team: toTeamDTO(team)})
}

func (h *CatalogHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "ListTeams", "principal_id", principal.UserID)
	teams, err := h.service.ListTeams(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "team list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]teamDTO, 0, len(teams))
	for _, team := range teams {
		dtos = append(dtos, toTeamDTO(team))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, teamListResponse{Teams: dtos})
}

func (h *CatalogHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	teamID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(teamID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DeleteTeam", "principal_id", principal.UserID, "team_id", teamID)
	if err := h.service.DeleteTeam(r.Context(), principal, teamID); err != nil {
		logger.ErrorContext(r.Context(), "team delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "team deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *CatalogHandler) CreateShift(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateShift", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode shift request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateShift", "principal_id", principal.UserID)

	shift, err := h.service.CreateShift(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "shift creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("shift_id", shift.ID).InfoContext(r.Context(), "shift created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, shiftResponse{Shift: toShiftDTO(shift)})
}

func (h *CatalogHandler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	shiftID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(shiftID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateShift", "principal_id", principal.UserID, "shift_id", shiftID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode shift update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateShift", "principal_id", principal.UserID, "shift_id", shiftID)

	shift, err := h.service.UpdateShift(r.Context(), principal, shiftID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "shift update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "shift updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, shiftResponse{Shift: toShiftDTO(shift)})
}

func (h *CatalogHandler) ListShifts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "ListShifts", "principal_id", principal.UserID)
	shifts, err := h.service.ListShifts(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "shift list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]shiftDTO, 0, len(shifts))
	for _, shift := range shifts {
		dtos = append(dtos, toShiftDTO(shift))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, shiftListResponse{Shifts: dtos})
}

func (h *CatalogHandler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	shiftID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(shiftID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DeleteShift", "principal_id", principal.UserID, "shift_id", shiftID)
	if err := h.service.DeleteShift(r.Context(), principal, shiftID); err != nil {
		logger.ErrorContext(r.Context(), "shift delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "shift deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type teamRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (req teamRequest) toInput() application.TeamInput {
	return application.TeamInput{
		Name:   req.Name,
		Type:   req.Type,
		Active: req.Active,
	}
}

type teamDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func toTeamDTO(team schedule.Team) teamDTO {
	return teamDTO{
		ID:     team.ID,
		Name:   team.Name,
		Type:   string(team.Type),
		Active: team.Active,
	}
}

type teamResponse struct {
	Team teamDTO `json:"team"`
}

type teamListResponse struct {
	Teams []teamDTO `json:"teams"`
}

type shiftRequest struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (req shiftRequest) toInput() application.ShiftInput {
	return application.ShiftInput{
		Name:  req.Name,
		Start: req.Start,
		End:   req.End,
	}
}

type shiftDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func toShiftDTO(shift schedule.Shift) shiftDTO {
	return shiftDTO{
		ID:    shift.ID,
		Name:  shift.Name,
		Start: shift.Start,
		End:   shift.End,
	}
}

type shiftResponse struct {
	Shift shiftDTO `json:"shift"`
}

type shiftListResponse struct {
	Shifts []shiftDTO `json:"shifts"`
}
