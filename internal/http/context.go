package http

import (
	"context"

	"github.com/example/fieldops/internal/shift"
)

type contextKey string

const sessionContextKey contextKey = "session"

// ContextWithSession returns a derived context containing the authenticated session.
func ContextWithSession(ctx context.Context, session shift.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext extracts the authenticated session from context if available.
func SessionFromContext(ctx context.Context) (shift.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(shift.Session)
	return session, ok
}
