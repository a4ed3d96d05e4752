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

var (
	saveColumns = []string{"id", "user_id", "game_id", "slot", "save_data", "created_at", "updated_at",
		"hs_id", "hs_score", "hs_created_at", "hs_updated_at"}
	hsColumns = []string{"id", "save_id", "game_id", "score", "created_at", "updated_at"}
)

func TestSaveRepo_GetOrCreate_Existing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	key := model.SaveKey{UserID: 3, GameID: 5, Slot: 1}
	now := time.Now()
	hsID, score := int64(9), int64(150)

	mock.ExpectQuery(`FROM saves s\s+LEFT JOIN highscores h`).
		WithArgs(int64(3), int64(5), 1).
		WillReturnRows(pgxmock.NewRows(saveColumns).
			AddRow(int64(20), int64(3), int64(5), 1, `{"lvl":2}`, now, now, &hsID, &score, &now, &now))

	s, err := r.GetOrCreate(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(20), s.ID)
	require.Equal(t, `{"lvl":2}`, s.Data)
	require.NotNil(t, s.Highscore)
	require.Equal(t, int64(150), s.Highscore.Score)
	require.Equal(t, int64(5), s.Highscore.GameID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRepo_GetOrCreate_Inserts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	key := model.SaveKey{UserID: 3, GameID: 5, Slot: 0}
	now := time.Now()

	mock.ExpectQuery(`FROM saves s`).
		WithArgs(int64(3), int64(5), 0).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO saves \(user_id, game_id, slot\)`).
		WithArgs(int64(3), int64(5), 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "save_data", "created_at", "updated_at"}).AddRow(int64(21), "", now, now))

	s, err := r.GetOrCreate(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(21), s.ID)
	require.Nil(t, s.Highscore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRepo_GetOrCreate_LostRace(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	key := model.SaveKey{UserID: 3, GameID: 5, Slot: 0}
	now := time.Now()

	mock.ExpectQuery(`FROM saves s`).
		WithArgs(int64(3), int64(5), 0).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO saves`).
		WithArgs(int64(3), int64(5), 0).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`FROM saves s`).
		WithArgs(int64(3), int64(5), 0).
		WillReturnRows(pgxmock.NewRows(saveColumns).
			AddRow(int64(22), int64(3), int64(5), 0, "", now, now, nil, nil, nil, nil))

	s, err := r.GetOrCreate(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(22), s.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRepo_GetOrCreate_UnknownGame(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	key := model.SaveKey{UserID: 3, GameID: 99, Slot: 0}

	mock.ExpectQuery(`FROM saves s`).
		WithArgs(int64(3), int64(99), 0).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO saves`).
		WithArgs(int64(3), int64(99), 0).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := r.GetOrCreate(context.Background(), key)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	key := model.SaveKey{UserID: 3, GameID: 5, Slot: 0}
	now := time.Now()

	mock.ExpectQuery(`ON CONFLICT \(user_id, game_id, slot\) DO UPDATE`).
		WithArgs(int64(3), int64(5), 0, "blob").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(20), now, now))

	s, err := r.Upsert(context.Background(), key, "blob")
	require.NoError(t, err)
	require.Equal(t, "blob", s.Data)
	require.Equal(t, int64(20), s.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRepo_RaiseHighscore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO highscores`).
		WithArgs(int64(20), int64(5), int64(150)).
		WillReturnRows(pgxmock.NewRows(hsColumns).AddRow(int64(9), int64(20), int64(5), int64(150), now, now))
	hs, changed, err := r.RaiseHighscore(ctx, 20, 5, 150)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, int64(150), hs.Score)

	// the conditional update skipped the row: the stored score wins
	mock.ExpectQuery(`INSERT INTO highscores`).
		WithArgs(int64(20), int64(5), int64(80)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM highscores WHERE save_id=\$1`).
		WithArgs(int64(20)).
		WillReturnRows(pgxmock.NewRows(hsColumns).AddRow(int64(9), int64(20), int64(5), int64(150), now, now))
	hs, changed, err = r.RaiseHighscore(ctx, 20, 5, 80)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, int64(150), hs.Score)

	mock.ExpectQuery(`INSERT INTO highscores`).
		WithArgs(int64(99), int64(5), int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	_, _, err = r.RaiseHighscore(ctx, 99, 5, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRepo_Leaderboard(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSaveRepo(db)
	now := time.Now()

	mock.ExpectQuery(`ORDER BY h.score DESC, h.updated_at ASC, h.id ASC`).
		WithArgs(int64(5), 3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "full_name", "slot", "score", "updated_at"}).
			AddRow(int64(3), "alice", "Alice", 0, int64(150), now).
			AddRow(int64(4), "bob", "Bob", 1, int64(120), now).
			AddRow(int64(5), "carol", "Carol", 0, int64(90), now))

	top, err := r.Leaderboard(context.Background(), 5, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	for i, e := range top {
		require.Equal(t, i+1, e.Rank)
	}
	require.Equal(t, "alice", top[0].Username)
	require.NoError(t, mock.ExpectationsWereMet())
}
