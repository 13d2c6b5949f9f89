package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/calendar"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

type calendarService interface {
	Occurrences(ctx context.Context, params application.OccurrencesParams) ([]calendar.Entry, error)
	NextOccurrence(ctx context.Context, session shift.Session) (recurrence.Occurrence, bool, error)
}

// CalendarHandler serves materialized occurrences.
type CalendarHandler struct {
	service   calendarService
	responder responder
}

func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, responder: newResponder(logger)}
}

func (h *CalendarHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())
	query := r.URL.Query()
	entries, err := h.service.Occurrences(r.Context(), application.OccurrencesParams{
		Session:    session,
		RangeStart: query.Get("start"),
		RangeEnd:   query.Get("end"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]calendarEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toCalendarEntryDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrencesResponse{Occurrences: out})
}

func (h *CalendarHandler) Next(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())
	occ, found, err := h.service.NextOccurrence(r.Context(), session)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !found {
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toOccurrenceDTO(occ))
}

type occurrenceDTO struct {
	ScheduleID string `json:"schedule_id"`
	ClientID   string `json:"client_id"`
	Date       string `json:"date"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
}

type calendarEntryDTO struct {
	occurrenceDTO
	Assignees    []assigneeDTO `json:"assignees"`
	ActiveShifts []shiftDTO    `json:"active_shifts"`
}

type occurrencesResponse struct {
	Occurrences []calendarEntryDTO `json:"occurrences"`
}

func toOccurrenceDTO(occ recurrence.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		ScheduleID: occ.ScheduleID,
		ClientID:   occ.ClientID,
		Date:       occ.Date.String(),
		StartAt:    occ.StartAt.Format(time.RFC3339),
		EndAt:      occ.EndAt.Format(time.RFC3339),
	}
}

func toCalendarEntryDTO(entry calendar.Entry) calendarEntryDTO {
	shifts := make([]shiftDTO, 0, len(entry.ActiveShifts))
	for _, record := range entry.ActiveShifts {
		shifts = append(shifts, toShiftDTO(record))
	}
	return calendarEntryDTO{
		occurrenceDTO: toOccurrenceDTO(entry.Occurrence),
		Assignees:     toAssigneeDTOs(entry.Assignees),
		ActiveShifts:  shifts,
	}
}
