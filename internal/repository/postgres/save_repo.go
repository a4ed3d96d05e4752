package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/jackc/pgx/v5"
)

// SaveRepo implements SaveRepository using PostgreSQL.
type SaveRepo struct{ db *DB }

// NewSaveRepo constructs a save repository.
func NewSaveRepo(db *DB) *SaveRepo { return &SaveRepo{db: db} }

const saveSelect = `
SELECT s.id, s.user_id, s.game_id, s.slot, s.save_data, s.created_at, s.updated_at,
       h.id, h.score, h.created_at, h.updated_at
FROM saves s
LEFT JOIN highscores h ON h.save_id = s.id
WHERE s.user_id=$1 AND s.game_id=$2 AND s.slot=$3`

func (r *SaveRepo) find(ctx context.Context, key model.SaveKey) (*model.Save, error) {
	var (
		s         model.Save
		hsID      *int64
		hsScore   *int64
		hsCreated *time.Time
		hsUpdated *time.Time
	)
	err := r.db.Pool.QueryRow(ctx, saveSelect, key.UserID, key.GameID, key.Slot).
		Scan(&s.ID, &s.UserID, &s.GameID, &s.Slot, &s.Data, &s.CreatedAt, &s.UpdatedAt, &hsID, &hsScore, &hsCreated, &hsUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if hsID != nil && hsScore != nil {
		hs := &model.Highscore{ID: *hsID, SaveID: s.ID, GameID: s.GameID, Score: *hsScore}
		if hsCreated != nil {
			hs.CreatedAt = *hsCreated
		}
		if hsUpdated != nil {
			hs.UpdatedAt = *hsUpdated
		}
		s.Highscore = hs
	}
	return &s, nil
}

// GetOrCreate returns the save for key, creating an empty one on first read.
// When a concurrent first read wins the insert, the existing row is re-read.
func (r *SaveRepo) GetOrCreate(ctx context.Context, key model.SaveKey) (*model.Save, error) {
	s, err := r.find(ctx, key)
	if err == nil || !errors.Is(err, errs.ErrNotFound) {
		return s, err
	}

	const ins = `
INSERT INTO saves (user_id, game_id, slot)
VALUES ($1, $2, $3)
RETURNING id, save_data, created_at, updated_at`
	s = &model.Save{UserID: key.UserID, GameID: key.GameID, Slot: key.Slot}
	err = r.db.Pool.QueryRow(ctx, ins, key.UserID, key.GameID, key.Slot).Scan(&s.ID, &s.Data, &s.CreatedAt, &s.UpdatedAt)
	switch {
	case err == nil:
		return s, nil
	case isUniqueViolation(err):
		return r.find(ctx, key)
	case isForeignKeyViolation(err):
		return nil, errs.ErrNotFound
	default:
		return nil, err
	}
}

// Upsert stores data for key; the row is created when absent. Last write wins.
func (r *SaveRepo) Upsert(ctx context.Context, key model.SaveKey, data string) (*model.Save, error) {
	const q = `
INSERT INTO saves (user_id, game_id, slot, save_data)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, game_id, slot) DO UPDATE
SET save_data = EXCLUDED.save_data, updated_at = now()
RETURNING id, created_at, updated_at`
	s := &model.Save{UserID: key.UserID, GameID: key.GameID, Slot: key.Slot, Data: data}
	err := r.db.Pool.QueryRow(ctx, q, key.UserID, key.GameID, key.Slot, data).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

const hsCols = `id, save_id, game_id, score, created_at, updated_at`

func scanHighscore(row pgx.Row) (*model.Highscore, error) {
	var hs model.Highscore
	if err := row.Scan(&hs.ID, &hs.SaveID, &hs.GameID, &hs.Score, &hs.CreatedAt, &hs.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &hs, nil
}

// GetHighscore returns the highscore of a save.
func (r *SaveRepo) GetHighscore(ctx context.Context, saveID int64) (*model.Highscore, error) {
	return scanHighscore(r.db.Pool.QueryRow(ctx, `SELECT `+hsCols+` FROM highscores WHERE save_id=$1`, saveID))
}

// RaiseHighscore inserts the first score unconditionally and later ones only
// when strictly greater than the stored score, in a single statement.
func (r *SaveRepo) RaiseHighscore(ctx context.Context, saveID, gameID, score int64) (*model.Highscore, bool, error) {
	const q = `
INSERT INTO highscores (save_id, game_id, score)
VALUES ($1, $2, $3)
ON CONFLICT (save_id) DO UPDATE
SET score = EXCLUDED.score, updated_at = now()
WHERE highscores.score < EXCLUDED.score
RETURNING ` + hsCols
	hs, err := scanHighscore(r.db.Pool.QueryRow(ctx, q, saveID, gameID, score))
	switch {
	case err == nil:
		return hs, true, nil
	case errors.Is(err, errs.ErrNotFound):
		// conflict row kept its higher or equal score
		hs, err = r.GetHighscore(ctx, saveID)
		return hs, false, err
	case isForeignKeyViolation(err):
		return nil, false, errs.ErrNotFound
	default:
		return nil, false, err
	}
}

// Leaderboard returns the best limit scores of a game with owner display identity.
func (r *SaveRepo) Leaderboard(ctx context.Context, gameID int64, limit int) ([]model.LeaderboardEntry, error) {
	const q = `
SELECT u.id, u.username, u.full_name, s.slot, h.score, h.updated_at
FROM highscores h
JOIN saves s ON s.id = h.save_id
JOIN users u ON u.id = s.user_id
WHERE h.game_id=$1
ORDER BY h.score DESC, h.updated_at ASC, h.id ASC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.FullName, &e.Slot, &e.Score, &e.AchievedAt); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}
