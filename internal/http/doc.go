// Package http provides HTTP handlers and middleware for the fieldops API.
//
// Every endpoint except /healthz and /metrics requires an
// `Authorization: Bearer <token>` header carrying the caller's session.
//
// The router exposes the following endpoints:
//   - POST /shifts/check-in: opens a shift. Body: {"client_id","schedule_id","latitude","longitude"}.
//     Responds 201 with the `shiftDTO` defined in shift_handler.go, 422 `distance_exceeded`
//     with distance_miles/radius_miles, or 409 `shift_conflict`.
//   - POST /shifts/check-out: closes the caller's open shift. Body:
//     {"latitude","longitude","message","photo_urls","pin"}. Responds 200, 428
//     `pin_required`, 403 `invalid_pin`, 429 `pin_locked` or 404 `no_active_shift`.
//   - GET /shifts/current: the caller's lifecycle state and open shift, if any.
//   - GET /shifts/{id}: a shift record. Staff may only read their own shifts.
//   - GET /calendar/occurrences?start=YYYY-MM-DD&end=YYYY-MM-DD: occurrences in the
//     inclusive window with assignees and open shifts attached.
//   - GET /calendar/next: the caller's next assigned occurrence, 204 when none.
//   - GET /schedules, POST /schedules, GET/PUT/DELETE /schedules/{id},
//     PUT /schedules/{id}/status: schedule definition management exchanging the
//     `scheduleDTO` payload defined in schedule_handler.go. Mutations require an
//     administrator session.
//   - GET/PUT /clients/{id}/site: client site coordinates.
//   - PUT /organization/pin: replaces the organisation manager PIN.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
