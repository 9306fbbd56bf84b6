package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/application"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

type ruleService interface {
	CreateRule(ctx context.Context, principal application.Principal, input application.RuleInput) (recurrence.Rule, error)
	GetRule(ctx context.Context, principal application.Principal, ruleID string) (recurrence.Rule, error)
	ListRules(ctx context.Context, principal application.Principal) ([]recurrence.Rule, error)
	DeleteRule(ctx context.Context, principal application.Principal, ruleID string) error
}

type assignmentService interface {
	Assign(ctx context.Context, params application.AssignParams) (recurrence.Assignment, error)
	History(ctx context.Context, principal application.Principal, subjectID string) ([]recurrence.Assignment, error)
}

type exceptionService interface {
	RecordException(ctx context.Context, params application.RecordExceptionParams) (schedule.Exception, error)
	ListExceptions(ctx context.Context, principal application.Principal, subjectID string, start, end time.Time) ([]schedule.Exception, error)
	DeleteException(ctx context.Context, principal application.Principal, exceptionID string) error
}

// PlanningHandler serves the rule, assignment, and exception endpoints: the
// write side of the schedule definition.
type PlanningHandler struct {
	rules       ruleService
	assignments assignmentService
	exceptions  exceptionService
	responder   responder
	logger      *slog.Logger
}

func NewPlanningHandler(rules ruleService, assignments assignmentService, exceptions exceptionService, logger *slog.Logger) *PlanningHandler {
	base := defaultLogger(logger)
	return &PlanningHandler{
		rules:       rules,
		assignments: assignments,
		exceptions:  exceptions,
		responder:   newResponder(base),
		logger:      base,
	}
}

func (h *PlanningHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PlanningHandler", operation, attrs...)
}

func (h *PlanningHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateRule", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode rule request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "CreateRule", "principal_id", principal.UserID)

	rule, err := h.rules.CreateRule(r.Context(), principal, input)
	if err != nil {
		logger.ErrorContext(r.Context(), "rule creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("rule_id", rule.ID).InfoContext(r.Context(), "rule created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, ruleResponse{Rule: toRuleDTO(rule)})
}

func (h *PlanningHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ruleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(ruleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rule, err := h.rules.GetRule(r.Context(), principal, ruleID)
	if err != nil {
		h.log(r.Context(), "GetRule", "rule_id", ruleID).ErrorContext(r.Context(), "rule fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, ruleResponse{Rule: toRuleDTO(rule)})
}

func (h *PlanningHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	rules, err := h.rules.ListRules(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "ListRules").ErrorContext(r.Context(), "rule list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toRuleDTO(rule))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, ruleListResponse{Rules: dtos})
}

func (h *PlanningHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ruleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(ruleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DeleteRule", "principal_id", principal.UserID, "rule_id", ruleID)
	if err := h.rules.DeleteRule(r.Context(), principal, ruleID); err != nil {
		logger.ErrorContext(r.Context(), "rule delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "rule deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *PlanningHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.assignments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateAssignment", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode assignment request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, err := req.toParams(principal)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "CreateAssignment", "principal_id", principal.UserID, "subject_id", req.SubjectID)

	assignment, err := h.assignments.Assign(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("assignment_id", assignment.ID).InfoContext(r.Context(), "subject assigned")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

func (h *PlanningHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.assignments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
	if subjectID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("subject_id query parameter is required"))
		return
	}

	assignments, err := h.assignments.History(r.Context(), principal, subjectID)
	if err != nil {
		h.log(r.Context(), "ListAssignments", "subject_id", subjectID).ErrorContext(r.Context(), "assignment list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]assignmentDTO, 0, len(assignments))
	for _, assignment := range assignments {
		dtos = append(dtos, toAssignmentDTO(assignment))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentListResponse{Assignments: dtos})
}

func (h *PlanningHandler) CreateException(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.exceptions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateException", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode exception request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "CreateException", "principal_id", principal.UserID, "subject_id", req.SubjectID, "kind", req.Kind)

	exception, err := h.exceptions.RecordException(r.Context(), application.RecordExceptionParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "exception recording failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("exception_id", exception.ID).InfoContext(r.Context(), "exception recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, exceptionResponse{Exception: toExceptionDTO(exception)})
}

func (h *PlanningHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.exceptions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	subjectID := strings.TrimSpace(query.Get("subject_id"))
	if subjectID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("subject_id query parameter is required"))
		return
	}
	start, err := parseDateParam(query.Get("start"), "start")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	end, err := parseDateParam(query.Get("end"), "end")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	exceptions, err := h.exceptions.ListExceptions(r.Context(), principal, subjectID, start, end)
	if err != nil {
		h.log(r.Context(), "ListExceptions", "subject_id", subjectID).ErrorContext(r.Context(), "exception list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]exceptionDTO, 0, len(exceptions))
	for _, exception := range exceptions {
		dtos = append(dtos, toExceptionDTO(exception))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, exceptionListResponse{Exceptions: dtos})
}

func (h *PlanningHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.exceptions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	exceptionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(exceptionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DeleteException", "principal_id", principal.UserID, "exception_id", exceptionID)
	if err := h.exceptions.DeleteException(r.Context(), principal, exceptionID); err != nil {
		logger.ErrorContext(r.Context(), "exception delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "exception deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

const dateParamLayout = "2006-01-02"

func parseDateParam(value, name string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New(name + " query parameter is required")
	}
	parsed, err := time.ParseInLocation(dateParamLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, errors.New(name + " must use the YYYY-MM-DD format")
	}
	return parsed, nil
}

type slotDTO struct {
	ShiftID string   `json:"shift_id"`
	TeamIDs []string `json:"team_ids"`
}

func toSlot(dto slotDTO) recurrence.Slot {
	return recurrence.Slot{ShiftID: dto.ShiftID, TeamIDs: dto.TeamIDs}
}

func toSlotDTO(slot recurrence.Slot) slotDTO {
	return slotDTO{ShiftID: slot.ShiftID, TeamIDs: slot.TeamIDs}
}

type ruleRequest struct {
	Name         string               `json:"name"`
	Frequency    string               `json:"frequency"`
	Interval     int                  `json:"interval"`
	AnchorDate   string               `json:"anchor_date,omitempty"`
	Slots        []slotDTO            `json:"slots,omitempty"`
	CycleLength  int                  `json:"cycle_length,omitempty"`
	CycleOffsets map[string][]slotDTO `json:"cycle_offsets,omitempty"`
}

func (req ruleRequest) toInput() (application.RuleInput, error) {
	input := application.RuleInput{
		Name:        req.Name,
		Frequency:   req.Frequency,
		Interval:    req.Interval,
		CycleLength: req.CycleLength,
	}

	if trimmed := strings.TrimSpace(req.AnchorDate); trimmed != "" {
		anchor, err := time.ParseInLocation(dateParamLayout, trimmed, time.UTC)
		if err != nil {
			return application.RuleInput{}, errors.New("anchor_date must use the YYYY-MM-DD format")
		}
		input.AnchorDate = anchor
	}

	for _, dto := range req.Slots {
		input.Slots = append(input.Slots, toSlot(dto))
	}

	if len(req.CycleOffsets) > 0 {
		input.CycleOffsets = make(map[int][]recurrence.Slot, len(req.CycleOffsets))
		for key, dtos := range req.CycleOffsets {
			offset, err := strconv.Atoi(key)
			if err != nil {
				return application.RuleInput{}, errors.New("cycle_offsets keys must be integers")
			}
			slots := make([]recurrence.Slot, 0, len(dtos))
			for _, dto := range dtos {
				slots = append(slots, toSlot(dto))
			}
			input.CycleOffsets[offset] = slots
		}
	}

	return input, nil
}

type ruleDTO struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Frequency    string               `json:"frequency"`
	Interval     int                  `json:"interval,omitempty"`
	AnchorDate   string               `json:"anchor_date,omitempty"`
	Slots        []slotDTO            `json:"slots,omitempty"`
	CycleLength  int                  `json:"cycle_length,omitempty"`
	CycleOffsets map[string][]slotDTO `json:"cycle_offsets,omitempty"`
	CreatedAt    string               `json:"created_at"`
}

func toRuleDTO(rule recurrence.Rule) ruleDTO {
	dto := ruleDTO{
		ID:          rule.ID,
		Name:        rule.Name,
		Frequency:   rule.Frequency.String(),
		Interval:    rule.Interval,
		CycleLength: rule.CycleLength,
		CreatedAt:   rule.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !rule.AnchorDate.IsZero() {
		dto.AnchorDate = rule.AnchorDate.UTC().Format(dateParamLayout)
	}
	for _, slot := range rule.Slots {
		dto.Slots = append(dto.Slots, toSlotDTO(slot))
	}
	if len(rule.CycleOffsets) > 0 {
		dto.CycleOffsets = make(map[string][]slotDTO, len(rule.CycleOffsets))
		for offset, slots := range rule.CycleOffsets {
			dtos := make([]slotDTO, 0, len(slots))
			for _, slot := range slots {
				dtos = append(dtos, toSlotDTO(slot))
			}
			dto.CycleOffsets[strconv.Itoa(offset)] = dtos
		}
	}
	return dto
}

type ruleResponse struct {
	Rule ruleDTO `json:"rule"`
}

type ruleListResponse struct {
	Rules []ruleDTO `json:"rules"`
}

type assignmentRequest struct {
	SubjectID string `json:"subject_id"`
	TeamID    string `json:"team_id"`
	RuleID    string `json:"rule_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

func (req assignmentRequest) toParams(principal application.Principal) (application.AssignParams, error) {
	params := application.AssignParams{
		Principal: principal,
		SubjectID: req.SubjectID,
		TeamID:    req.TeamID,
		RuleID:    req.RuleID,
	}

	if trimmed := strings.TrimSpace(req.StartDate); trimmed != "" {
		start, err := time.ParseInLocation(dateParamLayout, trimmed, time.UTC)
		if err != nil {
			return application.AssignParams{}, errors.New("start_date must use the YYYY-MM-DD format")
		}
		params.StartDate = start
	}
	if trimmed := strings.TrimSpace(req.EndDate); trimmed != "" {
		end, err := time.ParseInLocation(dateParamLayout, trimmed, time.UTC)
		if err != nil {
			return application.AssignParams{}, errors.New("end_date must use the YYYY-MM-DD format")
		}
		params.EndDate = &end
	}

	return params, nil
}

type assignmentDTO struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	TeamID    string `json:"team_id"`
	RuleID    string `json:"rule_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toAssignmentDTO(assignment recurrence.Assignment) assignmentDTO {
	dto := assignmentDTO{
		ID:        assignment.ID,
		SubjectID: assignment.SubjectID,
		TeamID:    assignment.TeamID,
		RuleID:    assignment.RuleID,
		StartDate: assignment.StartDate.UTC().Format(dateParamLayout),
		CreatedAt: assignment.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if assignment.EndDate != nil {
		dto.EndDate = assignment.EndDate.UTC().Format(dateParamLayout)
	}
	return dto
}

type assignmentResponse struct {
	Assignment assignmentDTO `json:"assignment"`
}

type assignmentListResponse struct {
	Assignments []assignmentDTO `json:"assignments"`
}

type exceptionRequest struct {
	SubjectID      string `json:"subject_id"`
	Kind           string `json:"kind"`
	Priority       int    `json:"priority"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	TargetShiftID  string `json:"target_shift_id,omitempty"`
	ReducedMinutes int    `json:"reduced_minutes,omitempty"`
	Note           string `json:"note,omitempty"`
}

func (req exceptionRequest) toInput() (application.ExceptionInput, error) {
	input := application.ExceptionInput{
		SubjectID:      req.SubjectID,
		Kind:           req.Kind,
		Priority:       req.Priority,
		TargetShiftID:  req.TargetShiftID,
		ReducedMinutes: req.ReducedMinutes,
		Note:           req.Note,
	}

	if trimmed := strings.TrimSpace(req.StartDate); trimmed != "" {
		start, err := time.ParseInLocation(dateParamLayout, trimmed, time.UTC)
		if err != nil {
			return application.ExceptionInput{}, errors.New("start_date must use the YYYY-MM-DD format")
		}
		input.StartDate = start
	}
	if trimmed := strings.TrimSpace(req.EndDate); trimmed != "" {
		end, err := time.ParseInLocation(dateParamLayout, trimmed, time.UTC)
		if err != nil {
			return application.ExceptionInput{}, errors.New("end_date must use the YYYY-MM-DD format")
		}
		input.EndDate = end
	}

	return input, nil
}

type exceptionDTO struct {
	ID             string `json:"id"`
	SubjectID      string `json:"subject_id"`
	Kind           string `json:"kind"`
	Priority       int    `json:"priority"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	TargetShiftID  string `json:"target_shift_id,omitempty"`
	ReducedMinutes int    `json:"reduced_minutes,omitempty"`
	Note           string `json:"note,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toExceptionDTO(exception schedule.Exception) exceptionDTO {
	dto := exceptionDTO{
		ID:             exception.ID,
		SubjectID:      exception.SubjectID,
		Kind:           exception.Kind.String(),
		Priority:       exception.Priority,
		StartDate:      exception.StartDate.UTC().Format(dateParamLayout),
		ReducedMinutes: exception.ReducedMinutes,
		Note:           exception.Note,
		CreatedAt:      exception.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !exception.EndDate.IsZero() {
		dto.EndDate = exception.EndDate.UTC().Format(dateParamLayout)
	}
	if exception.TargetShift != nil {
		dto.TargetShiftID = exception.TargetShift.ID
	}
	return dto
}

type exceptionResponse struct {
	Exception exceptionDTO `json:"exception"`
}

type exceptionListResponse struct {
	Exceptions []exceptionDTO `json:"exceptions"`
}
