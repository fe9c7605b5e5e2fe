// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN COMMAND
// Proxies credentials to the university and issues a session token.
// Credentials are never stored.
// ══════════════════════════════════════════════════════════════════════════════

// LoginCommand contains the credentials.
type LoginCommand struct {
	Email    string
	Password string
}

// Validate validates the command.
func (c LoginCommand) Validate() error {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return shared.NewDomainError("student", "Login", shared.ErrEmptyValue, "email and password are required")
	}
	return nil
}

// LoginResult contains the student and their session.
type LoginResult struct {
	Student *student.Student     `json:"student"`
	Session student.SessionToken `json:"session"`
}

// LoginHandler handles LoginCommand.
type LoginHandler struct {
	auth     student.Authenticator
	sessions student.SessionIssuer
	log      *slog.Logger
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(auth student.Authenticator, sessions student.SessionIssuer, log *slog.Logger) *LoginHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LoginHandler{auth: auth, sessions: sessions, log: log.With(logger.Component("login"))}
}

// Handle executes the login.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.auth.Login(ctx, strings.TrimSpace(cmd.Email), cmd.Password)
	if err != nil {
		if shared.IsUnauthorized(err) {
			h.log.InfoContext(ctx, "login rejected")
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if s.Careers == nil {
		s.Careers = []student.Career{}
	}

	token, err := h.sessions.Issue(s)
	if err != nil {
		return nil, fmt.Errorf("login: issuing session: %w", err)
	}

	h.log.InfoContext(ctx, "student logged in", logger.Rut(s.Rut), slog.Int("careers", len(s.Careers)))
	return &LoginResult{Student: s, Session: token}, nil
}
