package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/fieldops/internal/auth"
	"github.com/example/fieldops/internal/logging"
	"github.com/example/fieldops/internal/shift"
)

// SessionVerifier resolves a bearer token into the session it was issued for.
type SessionVerifier interface {
	VerifyToken(ctx context.Context, token string) (shift.Session, error)
}

// RequireSession rejects requests without a valid bearer token and stores the
// verified session in the request context.
func RequireSession(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "unauthenticated",
					Message:   errMissingSessionToken.Error(),
				})
				return
			}

			session, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: "unauthenticated",
						Message:   "the session token is invalid or expired",
					})
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "session verification failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{
					ErrorCode: "internal",
					Message:   "failed to verify the session",
				})
				return
			}

			ctx := ContextWithSession(r.Context(), session)
			if logger := logging.FromContext(ctx); logger != nil {
				ctx = logging.ContextWithLogger(ctx, logger.With(
					"worker_id", session.WorkerID,
					"worker_kind", string(session.WorkerKind),
				))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestObserver receives the outcome of every request, typically for metrics.
type RequestObserver func(method string, status int, elapsed time.Duration)

// RequestLogger assigns a request id, stores a derived logger in the context
// and reports completion to observe when it is non-nil.
func RequestLogger(base *slog.Logger, observe RequestObserver) func(http.Handler) http.Handler {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			elapsed := time.Since(start)
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", elapsed)
			if observe != nil {
				observe(r.Method, recorder.status, elapsed)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func extractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
