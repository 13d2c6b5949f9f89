package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/shift"
)

type shiftLifecycle interface {
	CheckIn(ctx context.Context, session shift.Session, req shift.CheckInRequest) (shift.Record, error)
	CheckOut(ctx context.Context, session shift.Session, req shift.CheckOutRequest) (shift.Record, error)
	Status(ctx context.Context, session shift.Session) (shift.Status, error)
}

type shiftLookup interface {
	Get(ctx context.Context, session shift.Session, id string) (shift.Record, error)
}

// ShiftHandler exposes the check-in/check-out lifecycle.
type ShiftHandler struct {
	lifecycle shiftLifecycle
	shifts    shiftLookup
	responder responder
	logger    *slog.Logger
}

func NewShiftHandler(lifecycle shiftLifecycle, shifts shiftLookup, logger *slog.Logger) *ShiftHandler {
	return &ShiftHandler{lifecycle: lifecycle, shifts: shifts, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *ShiftHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.lifecycle == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSession)
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	location, vErr := parseLocation(req.Latitude, req.Longitude)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	record, err := h.lifecycle.CheckIn(r.Context(), session, req.toRequest(location))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "ShiftHandler", "CheckIn", "shift_id", record.ID).
		InfoContext(r.Context(), "shift opened")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toShiftDTO(record))
}

func (h *ShiftHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.lifecycle == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSession)
		return
	}

	var req checkOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	location, vErr := parseLocation(req.Latitude, req.Longitude)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	record, err := h.lifecycle.CheckOut(r.Context(), session, req.toRequest(location))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "ShiftHandler", "CheckOut",
		"shift_id", record.ID,
		"pin_override_used", record.PinOverrideUsed,
	).InfoContext(r.Context(), "shift closed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toShiftDTO(record))
}

func (h *ShiftHandler) Current(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.lifecycle == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSession)
		return
	}

	status, err := h.lifecycle.Status(r.Context(), session)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := statusResponse{State: string(status.State)}
	if status.Shift != nil {
		dto := toShiftDTO(*status.Shift)
		resp.Shift = &dto
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.shifts == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidShiftID)
		return
	}

	session, _ := SessionFromContext(r.Context())
	record, err := h.shifts.Get(r.Context(), session, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toShiftDTO(record))
}

// parseLocation requires both coordinates and checks their ranges.
func parseLocation(latitude, longitude *float64) (geo.Coordinate, *application.ValidationError) {
	fieldErrors := make(map[string]string)
	if latitude == nil {
		fieldErrors["latitude"] = "latitude is required"
	} else if math.IsNaN(*latitude) || *latitude < -90 || *latitude > 90 {
		fieldErrors["latitude"] = "latitude must be between -90 and 90"
	}
	if longitude == nil {
		fieldErrors["longitude"] = "longitude is required"
	} else if math.IsNaN(*longitude) || *longitude < -180 || *longitude > 180 {
		fieldErrors["longitude"] = "longitude must be between -180 and 180"
	}
	if len(fieldErrors) > 0 {
		return geo.Coordinate{}, &application.ValidationError{FieldErrors: fieldErrors}
	}

	location := geo.Coordinate{Latitude: *latitude, Longitude: *longitude}
	if err := location.Validate(); err != nil {
		return geo.Coordinate{}, &application.ValidationError{FieldErrors: map[string]string{"location": err.Error()}}
	}
	return location, nil
}

type checkInRequest struct {
	ClientID   string   `json:"client_id"`
	ScheduleID *string  `json:"schedule_id,omitempty"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

func (req checkInRequest) toRequest(location geo.Coordinate) shift.CheckInRequest {
	return shift.CheckInRequest{
		ClientID:   req.ClientID,
		ScheduleID: req.ScheduleID,
		Location:   location,
	}
}

type checkOutRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Message   string   `json:"message"`
	PhotoURLs []string `json:"photo_urls"`
	Pin       string   `json:"pin,omitempty"`
}

func (req checkOutRequest) toRequest(location geo.Coordinate) shift.CheckOutRequest {
	return shift.CheckOutRequest{
		Location:  location,
		Message:   req.Message,
		PhotoURLs: req.PhotoURLs,
		Pin:       req.Pin,
	}
}

type coordinateDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type shiftDTO struct {
	ID                    string         `json:"id"`
	WorkerID              string         `json:"worker_id"`
	WorkerKind            string         `json:"worker_kind"`
	ClientID              string         `json:"client_id"`
	ScheduleID            *string        `json:"schedule_id,omitempty"`
	State                 string         `json:"state"`
	CheckInAt             string         `json:"check_in_at"`
	CheckOutAt            *string        `json:"check_out_at,omitempty"`
	CheckInLocation       coordinateDTO  `json:"check_in_location"`
	CheckOutLocation      *coordinateDTO `json:"check_out_location,omitempty"`
	CheckInDistanceMiles  float64        `json:"check_in_distance_miles"`
	CheckOutDistanceMiles *float64       `json:"check_out_distance_miles,omitempty"`
	PinOverrideUsed       bool           `json:"pin_override_used"`
	Message               string         `json:"message,omitempty"`
	PhotoURLs             []string       `json:"photo_urls"`
}

type statusResponse struct {
	State string    `json:"state"`
	Shift *shiftDTO `json:"shift,omitempty"`
}

func toShiftDTO(record shift.Record) shiftDTO {
	dto := shiftDTO{
		ID:                    record.ID,
		WorkerID:              record.WorkerID,
		WorkerKind:            string(record.WorkerKind),
		ClientID:              record.ClientID,
		ScheduleID:            record.ScheduleID,
		State:                 string(record.State()),
		CheckInAt:             record.CheckInAt.UTC().Format(time.RFC3339),
		CheckInLocation:       coordinateDTO{Latitude: record.CheckInLocation.Latitude, Longitude: record.CheckInLocation.Longitude},
		CheckInDistanceMiles:  record.CheckInDistanceMiles,
		CheckOutDistanceMiles: record.CheckOutDistanceMiles,
		PinOverrideUsed:       record.PinOverrideUsed,
		Message:               record.Message,
		PhotoURLs:             record.PhotoURLs,
	}
	if dto.PhotoURLs == nil {
		dto.PhotoURLs = []string{}
	}
	if record.CheckOutAt != nil {
		formatted := record.CheckOutAt.UTC().Format(time.RFC3339)
		dto.CheckOutAt = &formatted
	}
	if record.CheckOutLocation != nil {
		dto.CheckOutLocation = &coordinateDTO{Latitude: record.CheckOutLocation.Latitude, Longitude: record.CheckOutLocation.Longitude}
	}
	return dto
}
