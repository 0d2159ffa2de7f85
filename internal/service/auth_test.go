package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"appstore/internal/model"
	"appstore/internal/repository"
	repoMocks "appstore/internal/repository/mocks"
	"appstore/internal/token"
)

func newAuthService(t *testing.T, users *repoMocks.MockUserRepository) (AuthService, *token.Manager) {
	t.Helper()
	tokens, err := token.NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	svc, err := NewAuthService(users, tokens, bcrypt.MinCost, log)
	require.NoError(t, err)
	return svc, tokens
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	valid := RegisterInput{Name: "Ada", Email: " Ada@Example.com ", Password: "secret1", ConfirmPassword: "secret1"}

	tests := []struct {
		name       string
		in         RegisterInput
		setupMocks func(m *repoMocks.MockUserRepository)
		wantErr    error
		wantField  string
	}{
		{
			name: "happy path stores a bcrypt hash",
			in:   valid,
			setupMocks: func(m *repoMocks.MockUserRepository) {
				m.On("FindByEmail", ctx, "ada@example.com").Return(nil, repository.ErrNotFound)
				m.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
					_, idErr := uuid.Parse(u.ID)
					return idErr == nil && !u.CreatedAt.IsZero() &&
						u.Email == "ada@example.com" &&
						u.Role == model.RoleUser &&
						u.PasswordHash != "secret1" &&
						bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")) == nil
				})).Return(&model.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", Role: model.RoleUser}, nil)
			},
		},
		{
			name:       "missing field",
			in:         RegisterInput{Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1"},
			setupMocks: func(m *repoMocks.MockUserRepository) {},
			wantErr:    ErrValidation,
		},
		{
			name:       "malformed email",
			in:         RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1", ConfirmPassword: "secret1"},
			setupMocks: func(m *repoMocks.MockUserRepository) {},
			wantErr:    ErrValidation,
			wantField:  "email",
		},
		{
			name:       "short password",
			in:         RegisterInput{Name: "A", Email: "a@b.co", Password: "12345", ConfirmPassword: "12345"},
			setupMocks: func(m *repoMocks.MockUserRepository) {},
			wantErr:    ErrValidation,
			wantField:  "password",
		},
		{
			name:       "passwords differ",
			in:         RegisterInput{Name: "A", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret2"},
			setupMocks: func(m *repoMocks.MockUserRepository) {},
			wantErr:    ErrValidation,
			wantField:  "confirmPassword",
		},
		{
			name:       "unknown role",
			in:         RegisterInput{Name: "A", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1", Role: "admin"},
			setupMocks: func(m *repoMocks.MockUserRepository) {},
			wantErr:    ErrValidation,
			wantField:  "role",
		},
		{
			name: "email taken",
			in:   valid,
			setupMocks: func(m *repoMocks.MockUserRepository) {
				m.On("FindByEmail", ctx, "ada@example.com").Return(&model.User{ID: "u0"}, nil)
			},
			wantErr: ErrConflict,
		},
		{
			name: "email taken by concurrent insert",
			in:   valid,
			setupMocks: func(m *repoMocks.MockUserRepository) {
				m.On("FindByEmail", ctx, "ada@example.com").Return(nil, repository.ErrNotFound)
				m.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicate)
			},
			wantErr: ErrConflict,
		},
		{
			name: "lookup failure",
			in:   valid,
			setupMocks: func(m *repoMocks.MockUserRepository) {
				m.On("FindByEmail", ctx, "ada@example.com").Return(nil, errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(repoMocks.MockUserRepository)
			svc, _ := newAuthService(t, users)
			tt.setupMocks(users)

			user, err := svc.Register(ctx, tt.in)

			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, "u1", user.ID)
				assert.Empty(t, user.PasswordHash)
			case errors.Is(tt.wantErr, ErrValidation), errors.Is(tt.wantErr, ErrConflict):
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantField != "" {
					var ve *ValidationError
					require.ErrorAs(t, err, &ve)
					assert.Equal(t, tt.wantField, ve.Field)
				}
			default:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			}
			users.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := func() *model.User {
		return &model.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: string(hash), Role: model.RoleDeveloper}
	}

	t.Run("happy path", func(t *testing.T) {
		users := new(repoMocks.MockUserRepository)
		svc, tokens := newAuthService(t, users)
		users.On("FindByEmail", ctx, "ada@example.com").Return(stored(), nil)

		res, err := svc.Login(ctx, "ADA@example.com", "secret1")
		require.NoError(t, err)
		assert.Empty(t, res.User.PasswordHash)
		assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 5*time.Second)

		claims, err := tokens.Parse(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		users := new(repoMocks.MockUserRepository)
		svc, _ := newAuthService(t, users)
		users.On("FindByEmail", ctx, "nobody@example.com").Return(nil, repository.ErrNotFound)
		users.On("FindByEmail", ctx, "ada@example.com").Return(stored(), nil)

		_, errUnknown := svc.Login(ctx, "nobody@example.com", "secret1")
		_, errWrong := svc.Login(ctx, "ada@example.com", "wrong-pass")

		assert.ErrorIs(t, errUnknown, ErrUnauthorized)
		assert.ErrorIs(t, errWrong, ErrUnauthorized)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _ := newAuthService(t, new(repoMocks.MockUserRepository))
		_, err := svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestAuthService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		svc, _ := newAuthService(t, new(repoMocks.MockUserRepository))
		_, err := svc.Verify(ctx, "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		svc, _ := newAuthService(t, new(repoMocks.MockUserRepository))
		_, err := svc.Verify(ctx, "abc.def.ghi")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("user deleted", func(t *testing.T) {
		users := new(repoMocks.MockUserRepository)
		svc, tokens := newAuthService(t, users)
		raw, err := tokens.Issue("gone")
		require.NoError(t, err)
		users.On("FindByID", ctx, "gone").Return(nil, repository.ErrNotFound)

		_, err = svc.Verify(ctx, raw)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("valid", func(t *testing.T) {
		users := new(repoMocks.MockUserRepository)
		svc, tokens := newAuthService(t, users)
		raw, err := tokens.Issue("u1")
		require.NoError(t, err)
		users.On("FindByID", ctx, "u1").Return(&model.User{ID: "u1", PasswordHash: "h"}, nil)

		user, err := svc.Verify(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Empty(t, user.PasswordHash)
	})
}
