// Package identity is the identity provider: it owns credentials, issues and
// verifies bearer tokens and runs out-of-band email flows.
package identity

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cybergames/internal/model"
)

// Claims are the verified contents of an identity token.
type Claims struct {
	UID           uuid.UUID
	Email         string
	EmailVerified bool
	ExpiresAt     time.Time
}

// UserUpdate is a partial update of an identity; nil fields are kept.
type UserUpdate struct {
	Email         *string
	Password      *string
	DisplayName   *string
	EmailVerified *bool
}

// Gateway is the capability set the platform consumes from the identity provider.
type Gateway interface {
	// CreateUser registers credentials and returns the new uid.
	CreateUser(ctx context.Context, email, password, displayName string) (uuid.UUID, error)
	// SignIn checks credentials, rate limited per (email, ip), and issues a token.
	SignIn(ctx context.Context, email, password, ip string) (model.Tokens, Claims, error)
	// VerifyToken validates a bearer token.
	VerifyToken(ctx context.Context, token string) (Claims, error)
	// Lookup returns the current claims of uid without issuing a token.
	Lookup(ctx context.Context, uid uuid.UUID) (Claims, error)
	// CheckPassword reports ErrUnauthorized when password does not match uid's.
	CheckPassword(ctx context.Context, uid uuid.UUID, password string) error
	// UpdateUser applies a partial update.
	UpdateUser(ctx context.Context, uid uuid.UUID, upd UserUpdate) error
	// DeleteUser removes the identity.
	DeleteUser(ctx context.Context, uid uuid.UUID) error
	// SendOobCode issues a one-time code of kind for the account with email.
	SendOobCode(ctx context.Context, kind model.OobKind, email string) error
	// PeekOobCode returns the email a valid code belongs to without consuming it.
	PeekOobCode(ctx context.Context, kind model.OobKind, code string) (string, error)
	// ApplyOobCode consumes a code: VERIFY_EMAIL marks the email verified,
	// PASSWORD_RESET sets newPassword. It returns the account email.
	ApplyOobCode(ctx context.Context, kind model.OobKind, code, newPassword string) (string, error)
}
