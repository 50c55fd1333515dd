package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/repository"
	"github.com/multision/SupaConsole/pkg/config"
	"github.com/multision/SupaConsole/pkg/crypto"
	jwtpkg "github.com/multision/SupaConsole/pkg/jwt"
)

var (
	// ErrUnauthorized is returned when a session cannot be resolved.
	ErrUnauthorized = domain.ErrUnauthorized
	// ErrInvalidCredentials is returned for a bad email/password pair.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

	errInvalidEmail = fmt.Errorf("%w: valid email required", repository.ErrInvalidArgument)
)

// Service handles sign-up, login and session resolution.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Session is returned after a successful sign-up or login.
type Session struct {
	Token     string        `json:"token"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Signup registers a new user and opens a session.
func (s Service) Signup(ctx context.Context, email, password string) (*domain.User, Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, Session{}, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, Session{}, fmt.Errorf("%w: %v", repository.ErrInvalidArgument, err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, Session{}, err
	}
	session, err := s.issue(user)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, session, nil
}

// Login authenticates a user and opens a session.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, Session{}, ErrInvalidCredentials
	}
	session, err := s.issue(user)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, session, nil
}

// Authorize resolves a session token into a principal.
func (s Service) Authorize(ctx context.Context, token string) (domain.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Principal{}, fmt.Errorf("%w: token required", ErrUnauthorized)
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.SessionSecret)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		return domain.Principal{}, err
	}
	return domain.Principal{UserID: user.ID, Email: user.Email}, nil
}

func (s Service) issue(user *domain.User) (Session, error) {
	token, err := jwtpkg.GenerateToken(user.ID, user.Email, s.cfg.SessionSecret, s.cfg.SessionTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresIn: s.cfg.SessionTTL}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errInvalidEmail
	}
	return email, nil
}
