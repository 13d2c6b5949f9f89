package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/logging"
	"github.com/example/fieldops/internal/shift"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidScheduleID   = errors.New("schedule id is required")
	errInvalidShiftID      = errors.New("shift id is required")
	errInvalidClientID     = errors.New("client id is required")
	errMissingSessionToken = errors.New("a bearer token is required")
	errMissingSession      = errors.New("no authenticated session")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application and lifecycle errors to responses.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		distErr *shift.DistanceError
		pinErr  *shift.PinRequiredError
		vErr    *application.ValidationError
	)
	switch {
	case errors.As(err, &distErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode:     "distance_exceeded",
			Message:       "you are too far from the client site to check in",
			DistanceMiles: &distErr.DistanceMiles,
			RadiusMiles:   &distErr.RadiusMiles,
		})
	case errors.As(err, &pinErr):
		r.writeJSON(ctx, w, http.StatusPreconditionRequired, errorResponse{
			ErrorCode:     "pin_required",
			Message:       "you are too far from the client site; a manager pin is required to check out",
			DistanceMiles: &pinErr.DistanceMiles,
			RadiusMiles:   &pinErr.RadiusMiles,
		})
	case errors.Is(err, shift.ErrInvalidPin):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: "invalid_pin", Message: "the manager pin is not valid"})
	case errors.Is(err, application.ErrPinLocked):
		r.writeJSON(ctx, w, http.StatusTooManyRequests, errorResponse{ErrorCode: "pin_locked", Message: "too many invalid pin attempts; try again later"})
	case errors.Is(err, shift.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "shift_conflict", Message: "you already have an open shift"})
	case errors.Is(err, shift.ErrNoActiveShift):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "no_active_shift", Message: "you have no open shift"})
	case errors.Is(err, shift.ErrInvalidRequest):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{ErrorCode: "invalid_request", Message: err.Error()})
	case errors.Is(err, shift.ErrInvalidSession), errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: "forbidden", Message: "you are not allowed to perform this operation"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "not_found", Message: "the requested resource does not exist"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "already_exists", Message: "the resource already exists"})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: "internal", Message: "an internal error occurred"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode     string            `json:"error_code,omitempty"`
	Message       string            `json:"message"`
	Errors        map[string]string `json:"errors,omitempty"`
	DistanceMiles *float64          `json:"distance_miles,omitempty"`
	RadiusMiles   *float64          `json:"radius_miles,omitempty"`
}
