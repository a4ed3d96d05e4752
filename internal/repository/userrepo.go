// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/cybergames/internal/model"
)

// UserRepository provides CRUD access for platform accounts.
type UserRepository interface {
	// Create inserts a new user and fills its ID and CreatedAt.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByExternalID loads a user by identity-provider uid.
	GetByExternalID(ctx context.Context, uid string) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// ExistsUsernameOrEmail reports whether either handle is taken.
	ExistsUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// List returns all users ordered by ID.
	List(ctx context.Context) ([]model.User, error)
	// Update persists full name and role.
	Update(ctx context.Context, u *model.User) error
	// Delete removes a user; dependent saves and requests cascade.
	Delete(ctx context.Context, id int64) error
}
