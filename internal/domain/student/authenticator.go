package student

import (
	"context"
	"time"
)

// Authenticator verifies student credentials against the university.
type Authenticator interface {
	// Login returns the student for email and password.
	// Returns ErrInvalidCredentials when the university rejects them.
	Login(ctx context.Context, email, password string) (*Student, error)
}

// SessionToken is a signed session handed to the client after login.
type SessionToken struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Issue(s *Student) (SessionToken, error)
}
