package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/fieldops/internal/shift"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthorized, "unauthorized"},
		{fmt.Errorf("lookup: %w", ErrNotFound), "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{ErrPinLocked, "pin_locked"},
		{newValidationError("pin", "bad"), "validation"},
		{shift.ErrConflict, "conflict"},
		{&shift.DistanceError{DistanceMiles: 2, RadiusMiles: 1}, "distance_exceeded"},
		{errors.New("disk full"), "unexpected"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
