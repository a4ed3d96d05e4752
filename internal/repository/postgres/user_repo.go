package postgres

import (
	"context"
	"errors"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, external_id, username, email, full_name, role, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.FullName, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (external_id, username, email, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.ExternalID, u.Username, u.Email, u.FullName, string(u.Role)).
		Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByExternalID selects a user by identity-provider uid.
func (r *UserRepo) GetByExternalID(ctx context.Context, uid string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE external_id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, uid))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// ExistsUsernameOrEmail reports whether a username or an email is taken.
func (r *UserRepo) ExistsUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE username=$1 OR email=$2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, username, email).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update persists full name and role.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	const q = `UPDATE users SET full_name=$2, role=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, u.ID, u.FullName, string(u.Role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
