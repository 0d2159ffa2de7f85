package repository

import (
	"context"

	"appstore/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts a user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByEmail returns ErrNotFound when no account uses the email.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID returns ErrNotFound when the account does not exist.
	FindByID(ctx context.Context, id string) (*model.User, error)
}
