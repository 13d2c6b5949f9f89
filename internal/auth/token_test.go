package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fieldops/internal/shift"
)

func newTestTokens(t *testing.T, now *time.Time) *Tokens {
	t.Helper()
	tokens, err := NewTokens(Config{Secret: "test-secret", Issuer: "fieldops", TTL: time.Hour}, func() time.Time { return *now })
	require.NoError(t, err)
	return tokens
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, &now)
	session := shift.Session{WorkerID: "alice", WorkerKind: shift.WorkerKindAdmin}

	token, err := tokens.Issue(session)
	require.NoError(t, err)

	got, err := tokens.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestVerifyToken_Rejects(t *testing.T) {
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, &now)
	valid, err := tokens.Issue(shift.Session{WorkerID: "alice", WorkerKind: shift.WorkerKindStaff})
	require.NoError(t, err)

	otherIssuer, err := NewTokens(Config{Secret: "test-secret", Issuer: "someone-else"}, func() time.Time { return now })
	require.NoError(t, err)
	foreign, err := otherIssuer.Issue(shift.Session{WorkerID: "alice", WorkerKind: shift.WorkerKindStaff})
	require.NoError(t, err)

	badKind, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		WorkerKind: "contractor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "fieldops",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	wrongSecret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		WorkerKind: "staff",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "fieldops",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "  ", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "wrong issuer", token: foreign, want: ErrInvalidToken},
		{name: "unknown worker kind", token: badKind, want: ErrInvalidToken},
		{name: "wrong secret", token: wrongSecret, want: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.VerifyToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("expired", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		_, err := tokens.VerifyToken(context.Background(), valid)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens(Config{}, nil)
	assert.Error(t, err)
}

func TestIssue_RejectsInvalidSession(t *testing.T) {
	tokens, err := NewTokens(Config{Secret: "s"}, nil)
	require.NoError(t, err)

	_, err = tokens.Issue(shift.Session{WorkerID: "alice", WorkerKind: "robot"})
	assert.ErrorIs(t, err, shift.ErrInvalidSession)
}
