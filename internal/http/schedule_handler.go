package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/shift"
)

type scheduleService interface {
	CreateSchedule(ctx context.Context, params application.CreateScheduleParams) (application.Schedule, error)
	UpdateSchedule(ctx context.Context, params application.UpdateScheduleParams) (application.Schedule, error)
	SetScheduleStatus(ctx context.Context, params application.SetScheduleStatusParams) (application.Schedule, error)
	GetSchedule(ctx context.Context, session shift.Session, scheduleID string) (application.Schedule, error)
	ListSchedules(ctx context.Context, params application.ListSchedulesParams) ([]application.Schedule, error)
	DeleteSchedule(ctx context.Context, session shift.Session, scheduleID string) error
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, _ := SessionFromContext(r.Context())

	schedule, err := h.service.CreateSchedule(r.Context(), application.CreateScheduleParams{
		Session: session,
		Input:   req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := scheduleIDFromPath(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	session, _ := SessionFromContext(r.Context())
	schedule, err := h.service.GetSchedule(r.Context(), session, scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := scheduleIDFromPath(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, _ := SessionFromContext(r.Context())

	schedule, err := h.service.UpdateSchedule(r.Context(), application.UpdateScheduleParams{
		Session:    session,
		ScheduleID: scheduleID,
		Input:      req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := scheduleIDFromPath(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	var req scheduleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, _ := SessionFromContext(r.Context())
	schedule, err := h.service.SetScheduleStatus(r.Context(), application.SetScheduleStatusParams{
		Session:    session,
		ScheduleID: scheduleID,
		Status:     req.Status,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := scheduleIDFromPath(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	session, _ := SessionFromContext(r.Context())
	if err := h.service.DeleteSchedule(r.Context(), session, scheduleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())
	schedules, err := h.service.ListSchedules(r.Context(), buildListParams(r.URL.Query(), session))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{Schedules: toScheduleDTOs(schedules)})
}

func scheduleIDFromPath(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	return id, id != ""
}

type assigneeDTO struct {
	WorkerID   string `json:"worker_id"`
	WorkerKind string `json:"worker_kind"`
}

type scheduleRequest struct {
	ClientID       string        `json:"client_id"`
	Title          string        `json:"title"`
	RecurrenceType string        `json:"recurrence_type"`
	StartDate      string        `json:"start_date"`
	DayOfWeek      *int          `json:"day_of_week"`
	StartTime      string        `json:"start_time"`
	EndTime        string        `json:"end_time"`
	Assignees      []assigneeDTO `json:"assignees"`
}

func (r scheduleRequest) toInput() application.ScheduleInput {
	assignees := make([]application.Assignee, 0, len(r.Assignees))
	for _, assignee := range r.Assignees {
		assignees = append(assignees, application.Assignee{WorkerID: assignee.WorkerID, WorkerKind: assignee.WorkerKind})
	}
	return application.ScheduleInput{
		ClientID:       r.ClientID,
		Title:          r.Title,
		RecurrenceType: r.RecurrenceType,
		StartDate:      r.StartDate,
		DayOfWeek:      r.DayOfWeek,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Assignees:      assignees,
	}
}

type scheduleStatusRequest struct {
	Status string `json:"status"`
}

type listSchedulesResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
}

type scheduleDTO struct {
	ID             string        `json:"id"`
	ClientID       string        `json:"client_id"`
	Title          string        `json:"title"`
	RecurrenceType string        `json:"recurrence_type"`
	StartDate      string        `json:"start_date"`
	DayOfWeek      *int          `json:"day_of_week"`
	StartTime      string        `json:"start_time"`
	EndTime        string        `json:"end_time"`
	Status         string        `json:"status"`
	Assignees      []assigneeDTO `json:"assignees"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

func toScheduleDTO(schedule application.Schedule) scheduleDTO {
	dto := scheduleDTO{
		ID:             schedule.ID,
		ClientID:       schedule.ClientID,
		Title:          schedule.Title,
		RecurrenceType: string(schedule.RecurrenceType),
		StartDate:      schedule.StartDate.String(),
		StartTime:      schedule.StartTime.String(),
		EndTime:        schedule.EndTime.String(),
		Status:         string(schedule.Status),
		Assignees:      toAssigneeDTOs(schedule.Assignees),
		CreatedAt:      schedule.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      schedule.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if schedule.DayOfWeek != nil {
		day := int(*schedule.DayOfWeek)
		dto.DayOfWeek = &day
	}
	return dto
}

func toScheduleDTOs(schedules []application.Schedule) []scheduleDTO {
	out := make([]scheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, toScheduleDTO(schedule))
	}
	return out
}

func toAssigneeDTOs(sessions []shift.Session) []assigneeDTO {
	out := make([]assigneeDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, assigneeDTO{WorkerID: session.WorkerID, WorkerKind: string(session.WorkerKind)})
	}
	return out
}

func buildListParams(values url.Values, session shift.Session) application.ListSchedulesParams {
	return application.ListSchedulesParams{
		Session:  session,
		ClientID: strings.TrimSpace(values.Get("client_id")),
		Statuses: parseCSV(values.Get("status")),
	}
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
