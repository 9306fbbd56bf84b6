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
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

type scheduleService interface {
	GetDay(ctx context.Context, principal application.Principal, date time.Time, subjectID string) (schedule.Day, error)
	GetRange(ctx context.Context, principal application.Principal, start, end time.Time, subjectID string) ([]application.DayResult, error)
	GetMonth(ctx context.Context, principal application.Principal, year int, month time.Month, subjectID string) ([]application.DayResult, error)
	GenerateEvents(ctx context.Context, principal application.Principal, start, end time.Time, subjectID string) ([]schedule.Event, error)
	IsWorkingDay(ctx context.Context, principal application.Principal, date time.Time, subjectID, teamID string) (bool, error)
	WorkingDaysCount(ctx context.Context, principal application.Principal, start, end time.Time, subjectID string) (int, int, error)
	RestDaysCount(ctx context.Context, principal application.Principal, start, end time.Time, subjectID string) (int, int, error)
	SchemeAnchorDate(ctx context.Context, principal application.Principal) (time.Time, error)
	UpdateSchemeAnchorDate(ctx context.Context, principal application.Principal, anchor time.Time) error
}

// ScheduleHandler serves the read side: resolved days, ranges, months,
// calendar events, working day queries, and the scheme anchor setting.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	base := defaultLogger(logger)
	return &ScheduleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

func (h *ScheduleHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	date, err := parseDateParam(query.Get("date"), "date")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	subjectID := strings.TrimSpace(query.Get("subject_id"))

	logger := h.log(r.Context(), "GetDay", "date", query.Get("date"), "subject_id", subjectID)

	day, err := h.service.GetDay(r.Context(), principal, date, subjectID)
	if err != nil {
		logger.ErrorContext(r.Context(), "day query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, dayResponse{Day: toDayDTO(day, subjectID)})
}

func (h *ScheduleHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

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
	subjectID := strings.TrimSpace(query.Get("subject_id"))

	logger := h.log(r.Context(), "GetRange", "start", query.Get("start"), "end", query.Get("end"), "subject_id", subjectID)

	results, err := h.service.GetRange(r.Context(), principal, start, end, subjectID)
	if err != nil {
		logger.ErrorContext(r.Context(), "range query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, rangeResponse{Days: toDayResultDTOs(results)})
}

func (h *ScheduleHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	year, err := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	if err != nil || year < 1 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("year query parameter is required"))
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	if err != nil || month < 1 || month > 12 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("month must be between 1 and 12"))
		return
	}
	subjectID := strings.TrimSpace(query.Get("subject_id"))

	logger := h.log(r.Context(), "GetMonth", "year", year, "month", month, "subject_id", subjectID)

	results, err := h.service.GetMonth(r.Context(), principal, year, time.Month(month), subjectID)
	if err != nil {
		logger.ErrorContext(r.Context(), "month query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, rangeResponse{Days: toDayResultDTOs(results)})
}

func (h *ScheduleHandler) GenerateEvents(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

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
	subjectID := strings.TrimSpace(query.Get("subject_id"))

	logger := h.log(r.Context(), "GenerateEvents", "start", query.Get("start"), "end", query.Get("end"), "subject_id", subjectID)

	events, err := h.service.GenerateEvents(r.Context(), principal, start, end, subjectID)
	if err != nil {
		logger.ErrorContext(r.Context(), "event generation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventListResponse{Events: dtos})
}

func (h *ScheduleHandler) WorkingDays(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	subjectID := strings.TrimSpace(query.Get("subject_id"))
	teamID := strings.TrimSpace(query.Get("team_id"))

	// A single date answers "is this a working day", optionally narrowed to
	// one team's coverage; a start/end pair answers the working and rest day
	// counts over the window.
	if dateValue := strings.TrimSpace(query.Get("date")); dateValue != "" {
		date, err := parseDateParam(dateValue, "date")
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		working, err := h.service.IsWorkingDay(r.Context(), principal, date, subjectID, teamID)
		if err != nil {
			h.log(r.Context(), "WorkingDays", "date", dateValue).ErrorContext(r.Context(), "working day query failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusOK, workingDayResponse{
			Date:      date.Format(dateParamLayout),
			Subject:   subjectID,
			Team:      teamID,
			IsWorking: working,
		})
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

	logger := h.log(r.Context(), "WorkingDays", "start", query.Get("start"), "end", query.Get("end"), "subject_id", subjectID)

	working, failed, err := h.service.WorkingDaysCount(r.Context(), principal, start, end, subjectID)
	if err != nil {
		logger.ErrorContext(r.Context(), "working day count failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	rest, _, err := h.service.RestDaysCount(r.Context(), principal, start, end, subjectID)
	if err != nil {
		logger.ErrorContext(r.Context(), "rest day count failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, workingDaysCountResponse{
		Start:       start.Format(dateParamLayout),
		End:         end.Format(dateParamLayout),
		Subject:     subjectID,
		WorkingDays: working,
		RestDays:    rest,
		FailedDays:  failed,
	})
}

func (h *ScheduleHandler) GetSchemeAnchor(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	anchor, err := h.service.SchemeAnchorDate(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "GetSchemeAnchor").ErrorContext(r.Context(), "scheme anchor query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, schemeAnchorResponse{AnchorDate: anchor.Format(dateParamLayout)})
}

func (h *ScheduleHandler) UpdateSchemeAnchor(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req schemeAnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateSchemeAnchor", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode anchor request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	anchor, err := parseDateParam(req.AnchorDate, "anchor_date")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "UpdateSchemeAnchor", "principal_id", principal.UserID, "anchor_date", req.AnchorDate)

	if err := h.service.UpdateSchemeAnchorDate(r.Context(), principal, anchor); err != nil {
		logger.ErrorContext(r.Context(), "scheme anchor update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "scheme anchor updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, schemeAnchorResponse{AnchorDate: anchor.Format(dateParamLayout)})
}

type dayShiftDTO struct {
	Shift       shiftDTO  `json:"shift"`
	Teams       []teamDTO `json:"teams"`
	Description string    `json:"description,omitempty"`
}

type dayDTO struct {
	Date        string        `json:"date"`
	Subject     string        `json:"subject,omitempty"`
	Shifts      []dayShiftDTO `json:"shifts"`
	IsWorking   bool          `json:"is_working"`
	CycleOffset int           `json:"cycle_offset"`
	Pattern     string        `json:"pattern,omitempty"`
	Diagnostics []string      `json:"diagnostics,omitempty"`
}

func toDayDTO(day schedule.Day, subjectID string) dayDTO {
	dto := dayDTO{
		Date:        day.Date.UTC().Format(dateParamLayout),
		Subject:     subjectID,
		Shifts:      make([]dayShiftDTO, 0, len(day.Shifts)),
		IsWorking:   day.IsWorking(),
		CycleOffset: day.CycleOffset,
		Pattern:     day.Pattern,
		Diagnostics: day.Diagnostics,
	}
	for _, dayShift := range day.Shifts {
		teams := make([]teamDTO, 0, len(dayShift.Teams))
		for _, team := range dayShift.Teams {
			teams = append(teams, toTeamDTO(team))
		}
		dto.Shifts = append(dto.Shifts, dayShiftDTO{
			Shift:       toShiftDTO(dayShift.Shift),
			Teams:       teams,
			Description: dayShift.Description,
		})
	}
	return dto
}

type dayResultDTO struct {
	Date  string  `json:"date"`
	Day   *dayDTO `json:"day,omitempty"`
	Error string  `json:"error,omitempty"`
}

func toDayResultDTOs(results []application.DayResult) []dayResultDTO {
	dtos := make([]dayResultDTO, 0, len(results))
	for _, result := range results {
		dto := dayResultDTO{Date: result.Date.UTC().Format(dateParamLayout)}
		if result.Err != nil {
			dto.Error = result.Err.Error()
		} else {
			day := toDayDTO(result.Day, result.Subject)
			dto.Day = &day
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

type dayResponse struct {
	Day dayDTO `json:"day"`
}

type rangeResponse struct {
	Days []dayResultDTO `json:"days"`
}

type eventDTO struct {
	Date        string    `json:"date"`
	Shift       shiftDTO  `json:"shift"`
	Teams       []teamDTO `json:"teams"`
	Subject     string    `json:"subject,omitempty"`
	CycleOffset int       `json:"cycle_offset"`
	Pattern     string    `json:"pattern,omitempty"`
	Description string    `json:"description,omitempty"`
}

func toEventDTO(event schedule.Event) eventDTO {
	teams := make([]teamDTO, 0, len(event.Teams))
	for _, team := range event.Teams {
		teams = append(teams, toTeamDTO(team))
	}
	return eventDTO{
		Date:        event.Date.UTC().Format(dateParamLayout),
		Shift:       toShiftDTO(event.Shift),
		Teams:       teams,
		Subject:     event.Subject,
		CycleOffset: event.CycleOffset,
		Pattern:     event.Pattern,
		Description: event.Description,
	}
}

type eventListResponse struct {
	Events []eventDTO `json:"events"`
}

type workingDayResponse struct {
	Date      string `json:"date"`
	Subject   string `json:"subject,omitempty"`
	Team      string `json:"team,omitempty"`
	IsWorking bool   `json:"is_working"`
}

type workingDaysCountResponse struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Subject     string `json:"subject,omitempty"`
	WorkingDays int    `json:"working_days"`
	RestDays    int    `json:"rest_days"`
	FailedDays  int    `json:"failed_days,omitempty"`
}

type schemeAnchorRequest struct {
	AnchorDate string `json:"anchor_date"`
}

type schemeAnchorResponse struct {
	AnchorDate string `json:"anchor_date"`
}
