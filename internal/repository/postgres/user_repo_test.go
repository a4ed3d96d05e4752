package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "external_id", "username", "email", "full_name", "role", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now()
	u := &model.User{ExternalID: "uid-1", Username: "alice", Email: "alice@example.com", FullName: "alice", Role: model.RoleUser}

	mock.ExpectQuery(`INSERT INTO users \(external_id, username, email, full_name, role\)`).
		WithArgs("uid-1", "alice", "alice@example.com", "alice", "USER").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("uid-1", "alice", "alice@example.com", "alice", "USER").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, external_id, username, email, full_name, role, created_at FROM users WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(7), "uid-1", "alice", "alice@example.com", "Alice", "MODERATOR", time.Now()))
	u, err := r.GetByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, model.RoleModerator, u.Role)
	require.Equal(t, "uid-1", u.ExternalID)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, 8)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_Lookups(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`FROM users WHERE external_id=\$1`).
		WithArgs("uid-1").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(7), "uid-1", "alice", "alice@example.com", "Alice", "USER", time.Now()))
	u, err := r.GetByExternalID(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ID)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE username=\$1 OR email=\$2\)`).
		WithArgs("alice", "a@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := r.ExistsUsernameOrEmail(ctx, "alice", "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	now := time.Now()

	mock.ExpectQuery(`FROM users ORDER BY id ASC`).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(int64(1), "uid-1", "root", "root@example.com", "Root", "ADMIN", now).
			AddRow(int64(2), "uid-2", "alice", "alice@example.com", "Alice", "USER", now))
	list, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].IsAdmin())
	require.False(t, list[1].IsAdmin())
}

func TestUserRepo_UpdateDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{ID: 7, FullName: "Alice L", Role: model.RoleAdmin}

	mock.ExpectExec(`UPDATE users SET full_name=\$2, role=\$3 WHERE id=\$1`).
		WithArgs(int64(7), "Alice L", "ADMIN").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Update(ctx, u))

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(int64(7), "Alice L", "ADMIN").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Update(ctx, u), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, 7))

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, 7), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
