package repository

import (
	"context"
	"time"

	"github.com/and161185/cybergames/internal/model"
	"github.com/gofrs/uuid/v5"
)

// IdentityRepository stores local identity-provider credentials and one-time codes.
type IdentityRepository interface {
	// Create inserts a credential record; a taken email is ErrAlreadyExists.
	Create(ctx context.Context, id *model.Identity) error
	// GetByUID loads a record by uid.
	GetByUID(ctx context.Context, uid uuid.UUID) (*model.Identity, error)
	// GetByEmail loads a record by email.
	GetByEmail(ctx context.Context, email string) (*model.Identity, error)
	// Update persists email, hash, display name and verification flag.
	Update(ctx context.Context, id *model.Identity) error
	// Delete removes a record and its codes.
	Delete(ctx context.Context, uid uuid.UUID) error
	// MarkAllVerified flags every unverified record as verified and returns how many changed.
	MarkAllVerified(ctx context.Context) (int64, error)
	// SaveCode stores a one-time code.
	SaveCode(ctx context.Context, c model.OobCode) error
	// PeekCode returns the owner of an unexpired, unused code without consuming it.
	PeekCode(ctx context.Context, hash []byte, kind model.OobKind, now time.Time) (uuid.UUID, error)
	// ConsumeCode marks an unexpired, unused code as used, lets apply change its
	// owner and persists the owner. Both writes commit together.
	ConsumeCode(ctx context.Context, hash []byte, kind model.OobKind, now time.Time, apply func(*model.Identity)) (*model.Identity, error)
}
