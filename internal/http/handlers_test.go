package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/calendar"
	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

var (
	staffSession = shift.Session{WorkerID: "staff-1", WorkerKind: shift.WorkerKindStaff}
	adminSession = shift.Session{WorkerID: "admin-1", WorkerKind: shift.WorkerKindAdmin}
)

type lifecycleStub struct {
	checkIn      shift.Record
	checkInErr   error
	checkOut     shift.Record
	checkOutErr  error
	status       shift.Status
	lastSession  shift.Session
	lastCheckIn  shift.CheckInRequest
	lastCheckOut shift.CheckOutRequest
}

func (l *lifecycleStub) CheckIn(ctx context.Context, session shift.Session, req shift.CheckInRequest) (shift.Record, error) {
	l.lastSession = session
	l.lastCheckIn = req
	return l.checkIn, l.checkInErr
}

func (l *lifecycleStub) CheckOut(ctx context.Context, session shift.Session, req shift.CheckOutRequest) (shift.Record, error) {
	l.lastSession = session
	l.lastCheckOut = req
	return l.checkOut, l.checkOutErr
}

func (l *lifecycleStub) Status(ctx context.Context, session shift.Session) (shift.Status, error) {
	return l.status, nil
}

type staticVerifier struct{}

func (staticVerifier) VerifyToken(ctx context.Context, token string) (shift.Session, error) {
	switch token {
	case "staff":
		return staffSession, nil
	case "admin":
		return adminSession, nil
	default:
		return shift.Session{}, fmt.Errorf("unknown token")
	}
}

func withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := staticVerifier{}.VerifyToken(r.Context(), extractBearerToken(r))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestShiftHandlers_CheckIn(t *testing.T) {
	t.Parallel()

	openedAt := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	lifecycle := &lifecycleStub{checkIn: shift.Record{
		ID: "shift-1", WorkerID: "staff-1", WorkerKind: shift.WorkerKindStaff, ClientID: "client-1",
		CheckInAt: openedAt, CheckInLocation: geo.Coordinate{Latitude: 40, Longitude: -73},
	}}
	router := NewRouter(RouterConfig{Shifts: NewShiftHandler(lifecycle, nil, nil), Authenticate: withSession})

	rec := doRequest(t, router, http.MethodPost, "/shifts/check-in", "staff", map[string]any{
		"client_id": "client-1", "latitude": 40.0, "longitude": -73.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if lifecycle.lastSession != staffSession {
		t.Fatalf("expected session from token, got %+v", lifecycle.lastSession)
	}
	if lifecycle.lastCheckIn.ClientID != "client-1" || lifecycle.lastCheckIn.Location.Longitude != -73 {
		t.Fatalf("unexpected request forwarded: %+v", lifecycle.lastCheckIn)
	}

	var dto shiftDTO
	if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.State != "checked_in" || dto.CheckInAt != "2024-03-11T08:00:00Z" {
		t.Fatalf("unexpected shift payload: %+v", dto)
	}
}

func TestShiftHandlers_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantCode   string
		wantMiles  bool
	}{
		{name: "distance exceeded", path: "/shifts/check-in", err: &shift.DistanceError{DistanceMiles: 2.5, RadiusMiles: 1}, wantStatus: http.StatusUnprocessableEntity, wantCode: "distance_exceeded", wantMiles: true},
		{name: "conflict", path: "/shifts/check-in", err: shift.ErrConflict, wantStatus: http.StatusConflict, wantCode: "shift_conflict"},
		{name: "missing site", path: "/shifts/check-in", err: fmt.Errorf("resolve site: %w", application.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "pin required", path: "/shifts/check-out", err: &shift.PinRequiredError{DistanceMiles: 3, RadiusMiles: 1}, wantStatus: http.StatusPreconditionRequired, wantCode: "pin_required", wantMiles: true},
		{name: "invalid pin", path: "/shifts/check-out", err: shift.ErrInvalidPin, wantStatus: http.StatusForbidden, wantCode: "invalid_pin"},
		{name: "pin locked", path: "/shifts/check-out", err: shift.ErrPinLocked, wantStatus: http.StatusTooManyRequests, wantCode: "pin_locked"},
		{name: "no active shift", path: "/shifts/check-out", err: shift.ErrNoActiveShift, wantStatus: http.StatusNotFound, wantCode: "no_active_shift"},
		{name: "unexpected", path: "/shifts/check-out", err: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lifecycle := &lifecycleStub{checkInErr: tt.err, checkOutErr: tt.err}
			router := NewRouter(RouterConfig{Shifts: NewShiftHandler(lifecycle, nil, nil), Authenticate: withSession})

			rec := doRequest(t, router, http.MethodPost, tt.path, "staff", map[string]any{
				"client_id": "client-1", "latitude": 40.0, "longitude": -73.0,
			})
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.ErrorCode != tt.wantCode {
				t.Fatalf("expected error code %q, got %q", tt.wantCode, resp.ErrorCode)
			}
			if tt.wantMiles && (resp.DistanceMiles == nil || resp.RadiusMiles == nil) {
				t.Fatalf("expected distance details in %+v", resp)
			}
		})
	}
}

func TestShiftHandlers_CheckOutForwardsPin(t *testing.T) {
	t.Parallel()

	closedAt := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	lifecycle := &lifecycleStub{checkOut: shift.Record{ID: "shift-1", CheckOutAt: &closedAt, PinOverrideUsed: true}}
	router := NewRouter(RouterConfig{Shifts: NewShiftHandler(lifecycle, nil, nil), Authenticate: withSession})

	rec := doRequest(t, router, http.MethodPost, "/shifts/check-out", "staff", map[string]any{
		"latitude": 41.0, "longitude": -73.0, "message": "done", "photo_urls": []string{"https://img/1.jpg"}, "pin": "4321",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lifecycle.lastCheckOut.Pin != "4321" || len(lifecycle.lastCheckOut.PhotoURLs) != 1 {
		t.Fatalf("unexpected check-out request: %+v", lifecycle.lastCheckOut)
	}
}

func TestShiftHandlers_RejectInvalidCoordinates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		body       map[string]any
		wantFields []string
	}{
		{name: "check-in latitude wraps", path: "/shifts/check-in", body: map[string]any{"client_id": "client-1", "latitude": 360.0, "longitude": 0.0}, wantFields: []string{"latitude"}},
		{name: "check-in missing coordinates", path: "/shifts/check-in", body: map[string]any{"client_id": "client-1"}, wantFields: []string{"latitude", "longitude"}},
		{name: "check-in missing longitude", path: "/shifts/check-in", body: map[string]any{"client_id": "client-1", "latitude": 0.0}, wantFields: []string{"longitude"}},
		{name: "check-out both out of range", path: "/shifts/check-out", body: map[string]any{"latitude": -360.0, "longitude": 720.0}, wantFields: []string{"latitude", "longitude"}},
		{name: "check-out missing coordinates", path: "/shifts/check-out", body: map[string]any{"message": "done"}, wantFields: []string{"latitude", "longitude"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lifecycle := &lifecycleStub{}
			router := NewRouter(RouterConfig{Shifts: NewShiftHandler(lifecycle, nil, nil), Authenticate: withSession})

			rec := doRequest(t, router, http.MethodPost, tt.path, "staff", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
			}
			resp := decodeError(t, rec)
			if resp.ErrorCode != "validation_failed" {
				t.Fatalf("expected validation_failed, got %q", resp.ErrorCode)
			}
			for _, field := range tt.wantFields {
				if _, ok := resp.Errors[field]; !ok {
					t.Fatalf("expected a %s error in %+v", field, resp.Errors)
				}
			}
			if lifecycle.lastSession != (shift.Session{}) {
				t.Fatalf("lifecycle should not be called, got session %+v", lifecycle.lastSession)
			}
		})
	}
}

func TestShiftHandlers_RejectMalformedBody(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{Shifts: NewShiftHandler(&lifecycleStub{}, nil, nil), Authenticate: withSession})
	req := httptest.NewRequest(http.MethodPost, "/shifts/check-in", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer staff")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestShiftHandlers_Current(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Shifts:       NewShiftHandler(&lifecycleStub{status: shift.Status{State: shift.StateNotCheckedIn}}, nil, nil),
		Authenticate: withSession,
	})

	rec := doRequest(t, router, http.MethodGet, "/shifts/current", "staff", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "not_checked_in" || resp.Shift != nil {
		t.Fatalf("unexpected status: %+v", resp)
	}
}

type scheduleServiceStub struct {
	created  application.CreateScheduleParams
	listed   application.ListSchedulesParams
	status   application.SetScheduleStatusParams
	err      error
	schedule application.Schedule
}

func (s *scheduleServiceStub) CreateSchedule(ctx context.Context, params application.CreateScheduleParams) (application.Schedule, error) {
	s.created = params
	return s.schedule, s.err
}

func (s *scheduleServiceStub) UpdateSchedule(ctx context.Context, params application.UpdateScheduleParams) (application.Schedule, error) {
	return s.schedule, s.err
}

func (s *scheduleServiceStub) SetScheduleStatus(ctx context.Context, params application.SetScheduleStatusParams) (application.Schedule, error) {
	s.status = params
	return s.schedule, s.err
}

func (s *scheduleServiceStub) GetSchedule(ctx context.Context, session shift.Session, id string) (application.Schedule, error) {
	return s.schedule, s.err
}

func (s *scheduleServiceStub) ListSchedules(ctx context.Context, params application.ListSchedulesParams) ([]application.Schedule, error) {
	s.listed = params
	return []application.Schedule{s.schedule}, s.err
}

func (s *scheduleServiceStub) DeleteSchedule(ctx context.Context, session shift.Session, id string) error {
	return s.err
}

func TestScheduleHandlers(t *testing.T) {
	t.Parallel()

	monday := recurrence.DayOfWeek(0)
	schedule := application.Schedule{
		ID: "schedule-1", ClientID: "client-1", RecurrenceType: recurrence.KindWeekly,
		StartDate: recurrence.NewDate(2024, time.March, 4), DayOfWeek: &monday,
		StartTime: recurrence.TimeOfDay{Hour: 8}, EndTime: recurrence.TimeOfDay{Hour: 12},
		Status: recurrence.StatusActive, Assignees: []shift.Session{staffSession},
	}

	t.Run("create forwards the body and session", func(t *testing.T) {
		t.Parallel()

		svc := &scheduleServiceStub{schedule: schedule}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(svc, nil), Authenticate: withSession})

		rec := doRequest(t, router, http.MethodPost, "/schedules", "admin", map[string]any{
			"client_id": "client-1", "recurrence_type": "weekly", "start_date": "2024-03-04", "day_of_week": 0,
			"start_time": "08:00", "end_time": "12:00",
			"assignees": []map[string]string{{"worker_id": "staff-1", "worker_kind": "staff"}},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if svc.created.Session != adminSession || len(svc.created.Input.Assignees) != 1 {
			t.Fatalf("unexpected params: %+v", svc.created)
		}
		var dto scheduleDTO
		if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dto.StartDate != "2024-03-04" || dto.DayOfWeek == nil || *dto.DayOfWeek != 0 || dto.StartTime != "08:00" {
			t.Fatalf("unexpected payload: %+v", dto)
		}
	})

	t.Run("validation errors return field details", func(t *testing.T) {
		t.Parallel()

		svc := &scheduleServiceStub{err: &application.ValidationError{FieldErrors: map[string]string{"end_time": "end_time must be after start_time"}}}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(svc, nil), Authenticate: withSession})

		rec := doRequest(t, router, http.MethodPost, "/schedules", "admin", map[string]any{})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Errors["end_time"] == "" {
			t.Fatalf("expected end_time detail, got %+v", resp)
		}
	})

	t.Run("unauthorized maps to 403", func(t *testing.T) {
		t.Parallel()

		svc := &scheduleServiceStub{err: application.ErrUnauthorized}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(svc, nil), Authenticate: withSession})

		rec := doRequest(t, router, http.MethodDelete, "/schedules/schedule-1", "staff", nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("list parses filters", func(t *testing.T) {
		t.Parallel()

		svc := &scheduleServiceStub{schedule: schedule}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(svc, nil), Authenticate: withSession})

		rec := doRequest(t, router, http.MethodGet, "/schedules?client_id=client-1&status=active,paused", "staff", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.listed.ClientID != "client-1" || len(svc.listed.Statuses) != 2 || svc.listed.Session != staffSession {
			t.Fatalf("unexpected list params: %+v", svc.listed)
		}
	})

	t.Run("status route reads the path id", func(t *testing.T) {
		t.Parallel()

		svc := &scheduleServiceStub{schedule: schedule}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(svc, nil), Authenticate: withSession})

		rec := doRequest(t, router, http.MethodPut, "/schedules/schedule-1/status", "admin", map[string]string{"status": "paused"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.status.ScheduleID != "schedule-1" || svc.status.Status != "paused" {
			t.Fatalf("unexpected status params: %+v", svc.status)
		}
	})
}

type calendarServiceStub struct {
	entries []calendar.Entry
	next    recurrence.Occurrence
	found   bool
	err     error
	params  application.OccurrencesParams
}

func (c *calendarServiceStub) Occurrences(ctx context.Context, params application.OccurrencesParams) ([]calendar.Entry, error) {
	c.params = params
	return c.entries, c.err
}

func (c *calendarServiceStub) NextOccurrence(ctx context.Context, session shift.Session) (recurrence.Occurrence, bool, error) {
	return c.next, c.found, c.err
}

func TestCalendarHandlers(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	occ := recurrence.Occurrence{
		ScheduleID: "schedule-1", ClientID: "client-1", Date: recurrence.NewDate(2024, time.March, 11),
		StartAt: start, EndAt: start.Add(4 * time.Hour),
	}

	t.Run("occurrences pass the window through", func(t *testing.T) {
		t.Parallel()

		svc := &calendarServiceStub{entries: []calendar.Entry{{Occurrence: occ, Assignees: []shift.Session{staffSession}}}}
		router := NewRouter(RouterConfig{Calendar: NewCalendarHandler(svc, nil), Authenticate: withSession})

		rec := doRequest(t, router, http.MethodGet, "/calendar/occurrences?start=2024-03-01&end=2024-03-31", "staff", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.params.RangeStart != "2024-03-01" || svc.params.RangeEnd != "2024-03-31" {
			t.Fatalf("unexpected params: %+v", svc.params)
		}
		var resp occurrencesResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Occurrences) != 1 || resp.Occurrences[0].Date != "2024-03-11" || len(resp.Occurrences[0].ActiveShifts) != 0 {
			t.Fatalf("unexpected payload: %+v", resp)
		}
	})

	t.Run("next without occurrence returns 204", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Calendar: NewCalendarHandler(&calendarServiceStub{}, nil), Authenticate: withSession})
		rec := doRequest(t, router, http.MethodGet, "/calendar/next", "staff", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("next returns the occurrence", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Calendar: NewCalendarHandler(&calendarServiceStub{next: occ, found: true}, nil), Authenticate: withSession})
		rec := doRequest(t, router, http.MethodGet, "/calendar/next", "staff", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var dto occurrenceDTO
		if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dto.StartAt != "2024-03-11T08:00:00Z" {
			t.Fatalf("unexpected start: %s", dto.StartAt)
		}
	})
}

func TestRouter_PublicRoutesSkipAuthentication(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) })
	router := NewRouter(RouterConfig{
		Shifts:       NewShiftHandler(&lifecycleStub{}, nil, nil),
		Metrics:      metrics,
		Authenticate: withSession,
	})

	if rec := doRequest(t, router, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/shifts/current", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
