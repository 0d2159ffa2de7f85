package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"appstore/internal/model"
	"appstore/internal/repository"
	"appstore/internal/token"
)

const minPasswordLength = 6

// errInvalidCredentials is shared by every failed login so callers cannot tell which part was wrong.
var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// AuthService covers account creation, login and bearer token verification.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Verify resolves a bearer token to its user.
	Verify(ctx context.Context, raw string) (*model.User, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    *token.Manager
	cost      int
	dummyHash []byte
	log       logrus.FieldLogger
}

// NewAuthService constructs an AuthService. An out-of-range bcrypt cost falls back to bcrypt.DefaultCost.
func NewAuthService(users repository.UserRepository, tokens *token.Manager, bcryptCost int, log logrus.FieldLogger) (AuthService, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}
	return &authService{
		users:     users,
		tokens:    tokens,
		cost:      bcryptCost,
		dummyHash: dummy,
		log:       log.WithField("component", "auth"),
	}, nil
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))

	if in.Name == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, invalid("", "all fields are required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return nil, invalid("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if in.Password != in.ConfirmPassword {
		return nil, invalid("confirmPassword", "passwords do not match")
	}
	switch in.Role {
	case "":
		in.Role = model.RoleUser
	case model.RoleUser, model.RoleDeveloper:
	default:
		return nil, invalid("role", "must be user or developer")
	}

	logCtx := s.log.WithField("email", in.Email)

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email already in use", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &model.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logCtx.Warn("registration lost race on unique email")
			return nil, fmt.Errorf("%w: email already in use", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logCtx.WithField("user_id", user.ID).Info("user registered")
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("", "email and password are required")
	}
	logCtx := s.log.WithField("email", email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		logCtx.Warn("login failed: unknown email")
		return nil, errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		logCtx.WithField("user_id", user.ID).Warn("login failed: wrong password")
		return nil, errInvalidCredentials
	}

	signed, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	logCtx.WithField("user_id", user.ID).Info("user logged in")
	user.PasswordHash = ""
	return &LoginResult{
		Token:     signed,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
		User:      user,
	}, nil
}

func (s *authService) Verify(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrForbidden)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrNotFound)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
