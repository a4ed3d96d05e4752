package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// IdentityRepo implements IdentityRepository using PostgreSQL.
type IdentityRepo struct{ db *DB }

// NewIdentityRepo constructs an identity repository.
func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

const identityCols = `uid, email, pwd_hash, display_name, email_verified, created_at`

func scanIdentity(row pgx.Row) (*model.Identity, error) {
	var id model.Identity
	if err := row.Scan(&id.UID, &id.Email, &id.PwdHash, &id.DisplayName, &id.EmailVerified, &id.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &id, nil
}

// Create inserts a credential record.
func (r *IdentityRepo) Create(ctx context.Context, id *model.Identity) error {
	const q = `
INSERT INTO identities (uid, email, pwd_hash, display_name, email_verified)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, id.UID, id.Email, id.PwdHash, id.DisplayName, id.EmailVerified).Scan(&id.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByUID selects a record by uid.
func (r *IdentityRepo) GetByUID(ctx context.Context, uid uuid.UUID) (*model.Identity, error) {
	return scanIdentity(r.db.Pool.QueryRow(ctx, `SELECT `+identityCols+` FROM identities WHERE uid=$1`, uid))
}

// GetByEmail selects a record by email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return scanIdentity(r.db.Pool.QueryRow(ctx, `SELECT `+identityCols+` FROM identities WHERE email=$1`, email))
}

// Update persists the mutable fields of a record.
func (r *IdentityRepo) Update(ctx context.Context, id *model.Identity) error {
	const q = `UPDATE identities SET email=$2, pwd_hash=$3, display_name=$4, email_verified=$5 WHERE uid=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id.UID, id.Email, id.PwdHash, id.DisplayName, id.EmailVerified)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a record; its codes cascade.
func (r *IdentityRepo) Delete(ctx context.Context, uid uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM identities WHERE uid=$1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// MarkAllVerified flags every unverified record as verified.
func (r *IdentityRepo) MarkAllVerified(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE identities SET email_verified=true WHERE NOT email_verified`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SaveCode stores a hashed one-time code.
func (r *IdentityRepo) SaveCode(ctx context.Context, c model.OobCode) error {
	const q = `INSERT INTO oob_codes (code_hash, kind, uid, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, c.Hash, string(c.Kind), c.UID, c.ExpiresAt)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	return err
}

// PeekCode returns the owner of a valid code and leaves it usable.
func (r *IdentityRepo) PeekCode(ctx context.Context, hash []byte, kind model.OobKind, now time.Time) (uuid.UUID, error) {
	const q = `SELECT uid FROM oob_codes WHERE code_hash=$1 AND kind=$2 AND used_at IS NULL AND expires_at > $3`
	var uid uuid.UUID
	if err := r.db.Pool.QueryRow(ctx, q, hash, string(kind), now).Scan(&uid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, errs.ErrNotFound
		}
		return uuid.Nil, err
	}
	return uid, nil
}

// ConsumeCode marks a valid code as used, applies the change to its owner and
// stores the owner in one transaction; unknown, expired and already used codes
// are all ErrNotFound. A failed update leaves the code usable.
func (r *IdentityRepo) ConsumeCode(
	ctx context.Context, hash []byte, kind model.OobKind, now time.Time, apply func(*model.Identity),
) (*model.Identity, error) {
	var id *model.Identity
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		const use = `
UPDATE oob_codes SET used_at=$3
WHERE code_hash=$1 AND kind=$2 AND used_at IS NULL AND expires_at > $3
RETURNING uid`
		var uid uuid.UUID
		if err := tx.QueryRow(ctx, use, hash, string(kind), now).Scan(&uid); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}

		var err error
		id, err = scanIdentity(tx.QueryRow(ctx, `SELECT `+identityCols+` FROM identities WHERE uid=$1 FOR UPDATE`, uid))
		if err != nil {
			return err
		}
		apply(id)
		const upd = `UPDATE identities SET email=$2, pwd_hash=$3, display_name=$4, email_verified=$5 WHERE uid=$1`
		_, err = tx.Exec(ctx, upd, id.UID, id.Email, id.PwdHash, id.DisplayName, id.EmailVerified)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}
