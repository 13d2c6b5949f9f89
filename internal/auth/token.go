// Package auth issues and verifies the HS256 bearer tokens that carry a
// worker session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/fieldops/internal/shift"
)

// DefaultTTL is the lifetime of issued tokens when none is configured.
const DefaultTTL = 12 * time.Hour

var (
	// ErrMissingToken is returned when no bearer token was supplied.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken wraps parsing and validation failures.
	ErrInvalidToken = errors.New("auth: invalid bearer token")
)

// Config holds signing parameters.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims is the JWT payload for a worker session.
type Claims struct {
	WorkerKind string `json:"worker_kind"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a Tokens from cfg. A nil now uses time.Now.
func NewTokens(cfg Config, now func() time.Time) (*Tokens, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TTL, now: now}, nil
}

// Issue returns a signed token for session.
func (t *Tokens) Issue(session shift.Session) (string, error) {
	if err := session.Validate(); err != nil {
		return "", err
	}
	issuedAt := t.now()
	claims := Claims{
		WorkerKind: string(session.WorkerKind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.WorkerID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates token and returns the session it carries.
func (t *Tokens) VerifyToken(_ context.Context, token string) (shift.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return shift.Session{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, opts...)
	if err != nil {
		return shift.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return shift.Session{}, ErrInvalidToken
	}

	kind, ok := shift.ParseWorkerKind(claims.WorkerKind)
	if !ok {
		return shift.Session{}, fmt.Errorf("%w: unknown worker kind %q", ErrInvalidToken, claims.WorkerKind)
	}
	session := shift.Session{WorkerID: claims.Subject, WorkerKind: kind}
	if err := session.Validate(); err != nil {
		return shift.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return session, nil
}
