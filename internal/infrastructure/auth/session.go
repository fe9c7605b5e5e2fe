// Package auth issues and verifies the signed session tokens handed out at
// login.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
)

// sessionClaims is the JWT body.
type sessionClaims struct {
	jwt.RegisteredClaims
	Rut     string           `json:"rut"`
	Email   string           `json:"email,omitempty"`
	Careers []student.Career `json:"careers"`
}

// Session is a verified session.
type Session struct {
	Student   *student.Student
	ExpiresAt time.Time
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ student.SessionIssuer = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. secret must not be empty.
func NewManager(secret []byte, issuer string, ttl time.Duration, opts ...Option) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty session secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: invalid session ttl %s", ttl)
	}
	m := &Manager{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for s.
func (m *Manager) Issue(s *student.Student) (student.SessionToken, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   s.Rut,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Rut:     s.Rut,
		Email:   s.Email,
		Careers: s.Careers,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return student.SessionToken{}, fmt.Errorf("auth: sign session: %w", err)
	}
	return student.SessionToken{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks signature, issuer and expiry and returns the session.
// Every failure is shared.ErrSessionInvalid.
func (m *Manager) Verify(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, shared.ErrSessionInvalid
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, shared.WrapError("session", "Verify", shared.ErrUnauthorized, "session is missing or invalid", err)
	}
	if student.ValidateRut(claims.Rut) != nil {
		return nil, shared.ErrSessionInvalid
	}

	careers := claims.Careers
	if careers == nil {
		careers = []student.Career{}
	}
	return &Session{
		Student:   &student.Student{Rut: claims.Rut, Email: claims.Email, Careers: careers},
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
