package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/fieldops/internal/shift"
)

const (
	// DefaultPinMaxAttempts is the number of failed PIN attempts allowed per window.
	DefaultPinMaxAttempts = 5
	// DefaultPinLockoutWindow is how long failed attempts are remembered.
	DefaultPinLockoutWindow = 15 * time.Minute

	minPinLength = 4
	maxPinLength = 12
)

// PinRepository stores the single organisation PIN hash.
type PinRepository interface {
	SetPin(ctx context.Context, pin PinRecord) error
	GetPin(ctx context.Context) (PinRecord, error)
}

// AttemptCounter counts failed attempts per key inside an expiring window.
type AttemptCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// PinService manages the organisation-wide manager PIN and verifies it for
// out-of-range check-outs. It satisfies shift.PinVerifier.
type PinService struct {
	pins       PinRepository
	attempts   AttemptCounter
	policy     PinPolicy
	hashParams Argon2idParams
	now        func() time.Time
	onLockout  func()
	logger     *slog.Logger
}

// NewPinService constructs a PIN service. attempts may be nil, which disables
// the attempt guard.
func NewPinService(pins PinRepository, attempts AttemptCounter, policy PinPolicy, now func() time.Time, logger *slog.Logger) *PinService {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPinMaxAttempts
	}
	if policy.LockoutWindow <= 0 {
		policy.LockoutWindow = DefaultPinLockoutWindow
	}
	if now == nil {
		now = time.Now
	}
	return &PinService{
		pins:       pins,
		attempts:   attempts,
		policy:     policy,
		hashParams: DefaultArgon2idParams,
		now:        now,
		onLockout:  func() {},
		logger:     defaultLogger(logger),
	}
}

// SetLockoutHook registers fn to run whenever an attempt is refused by the guard.
func (s *PinService) SetLockoutHook(fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.onLockout = fn
}

// SetPin replaces the organisation PIN. Administrators only; the PIN must be
// 4 to 12 digits.
func (s *PinService) SetPin(ctx context.Context, params SetPinParams) (err error) {
	if s == nil {
		return fmt.Errorf("PinService is nil")
	}
	if s.pins == nil {
		return fmt.Errorf("pin repository not configured")
	}

	logger := serviceLogger(ctx, s.logger, "PinService", "SetPin", "worker_id", params.Session.WorkerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set organisation pin", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "organisation pin updated")
	}()

	if !params.Session.IsAdmin() {
		return ErrUnauthorized
	}

	pin := strings.TrimSpace(params.Pin)
	if !validPin(pin) {
		return newValidationError("pin", fmt.Sprintf("pin must be %d to %d digits", minPinLength, maxPinLength))
	}

	hash, err := HashSecret(pin, s.hashParams)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	return s.pins.SetPin(ctx, PinRecord{
		Hash:      hash,
		UpdatedBy: params.Session.WorkerID,
		UpdatedAt: s.now(),
	})
}

// VerifyPin implements shift.PinVerifier. Every attempt is counted before the
// PIN is checked, so concurrent attempts cannot exceed MaxAttempts within
// LockoutWindow; past that the session gets ErrPinLocked without the PIN
// being checked. A correct PIN clears the session's count.
func (s *PinService) VerifyPin(ctx context.Context, session shift.Session, pin string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("PinService is nil")
	}
	if err := session.Validate(); err != nil {
		return false, err
	}

	logger := serviceLogger(ctx, s.logger, "PinService", "VerifyPin",
		"worker_id", session.WorkerID,
		"worker_kind", string(session.WorkerKind),
	)
	key := attemptKey(session)

	var attempt int64
	if s.attempts != nil {
		n, err := s.attempts.Incr(ctx, key, s.policy.LockoutWindow)
		if err != nil {
			return false, fmt.Errorf("record pin attempt: %w", err)
		}
		if n > int64(s.policy.MaxAttempts) {
			s.onLockout()
			logger.WarnContext(ctx, "manager pin attempt refused while locked", "attempt", n)
			return false, ErrPinLocked
		}
		attempt = n
	}

	if s.pins == nil {
		return false, nil
	}
	record, err := s.pins.GetPin(ctx)
	if err != nil && !isNotFoundError(err) {
		return false, fmt.Errorf("load organisation pin: %w", err)
	}

	matched := false
	if err == nil {
		switch verr := VerifySecret(record.Hash, strings.TrimSpace(pin)); {
		case verr == nil:
			matched = true
		case errors.Is(verr, errSecretMismatch):
		default:
			return false, fmt.Errorf("verify organisation pin: %w", verr)
		}
	} else {
		logger.WarnContext(ctx, "manager pin supplied but no organisation pin is configured")
	}

	if !matched {
		logger.WarnContext(ctx, "invalid manager pin", "failures", attempt, "max_attempts", s.policy.MaxAttempts)
		return false, nil
	}
	if s.attempts != nil {
		if err := s.attempts.Reset(ctx, key); err != nil {
			logger.WarnContext(ctx, "failed to reset pin attempts", "error", err)
		}
	}
	return true, nil
}

func attemptKey(session shift.Session) string {
	return "pin_attempts:" + string(session.WorkerKind) + ":" + session.WorkerID
}

func validPin(pin string) bool {
	if len(pin) < minPinLength || len(pin) > maxPinLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ shift.PinVerifier = (*PinService)(nil)
