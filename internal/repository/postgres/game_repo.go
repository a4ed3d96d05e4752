package postgres

import (
	"context"
	"errors"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GameRepo implements GameRepository using PostgreSQL.
type GameRepo struct{ db *DB }

// NewGameRepo constructs a game repository.
func NewGameRepo(db *DB) *GameRepo { return &GameRepo{db: db} }

const gameCols = `id, title, description, difficulty, image_url, game_url, game_type, enabled, created_at`

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	err := row.Scan(&g.ID, &g.Title, &g.Description, &g.Difficulty, &g.ImageURL, &g.GameURL, &g.GameType, &g.Enabled, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Create inserts a game and its controls in one transaction.
func (r *GameRepo) Create(ctx context.Context, f model.GameFields) (*model.Game, error) {
	var g *model.Game
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		g, err = insertGame(ctx, tx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Update replaces a game's fields and, when controls are supplied, its controls.
func (r *GameRepo) Update(ctx context.Context, id int64, f model.GameFields) (*model.Game, error) {
	var g *model.Game
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		g, err = updateGame(ctx, tx, id, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Get loads a game with its controls ordered by order index.
func (r *GameRepo) Get(ctx context.Context, id int64) (*model.Game, error) {
	const q = `SELECT ` + gameCols + ` FROM games WHERE id=$1`
	g, err := scanGame(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if g.Controls, err = selectControls(ctx, r.db.Pool, id); err != nil {
		return nil, err
	}
	return g, nil
}

// GetByTitle loads a game by title, without controls.
func (r *GameRepo) GetByTitle(ctx context.Context, title string) (*model.Game, error) {
	const q = `SELECT ` + gameCols + ` FROM games WHERE title=$1`
	return scanGame(r.db.Pool.QueryRow(ctx, q, title))
}

// List returns games most recent first with their controls.
func (r *GameRepo) List(ctx context.Context, enabledOnly bool) ([]model.Game, error) {
	const q = `SELECT ` + gameCols + ` FROM games WHERE ($1 = false OR enabled) ORDER BY id DESC`
	rows, err := r.db.Pool.Query(ctx, q, enabledOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Game{}
	ids := []int64{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	const cq = `
SELECT game_id, key_image, description, sort_order
FROM game_controls
WHERE game_id = ANY($1)
ORDER BY game_id, sort_order, id`
	crows, err := r.db.Pool.Query(ctx, cq, ids)
	if err != nil {
		return nil, err
	}
	defer crows.Close()

	byGame := make(map[int64][]model.Control, len(ids))
	for crows.Next() {
		var (
			gameID int64
			c      model.Control
		)
		if err := crows.Scan(&gameID, &c.KeyImage, &c.Description, &c.Order); err != nil {
			return nil, err
		}
		byGame[gameID] = append(byGame[gameID], c)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Controls = byGame[out[i].ID]
	}
	return out, nil
}

// Delete removes a game; dependents cascade.
func (r *GameRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM games WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func insertGame(ctx context.Context, q querier, f model.GameFields) (*model.Game, error) {
	const ins = `
INSERT INTO games (title, description, difficulty, image_url, game_url, game_type, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	g := &model.Game{GameFields: f}
	err := q.QueryRow(ctx, ins, f.Title, f.Description, f.Difficulty, f.ImageURL, f.GameURL, f.GameType, f.Enabled).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.ErrAlreadyExists
		}
		return nil, err
	}
	if g.Controls, err = insertControls(ctx, q, g.ID, f.Controls); err != nil {
		return nil, err
	}
	return g, nil
}

func updateGame(ctx context.Context, q querier, id int64, f model.GameFields) (*model.Game, error) {
	const upd = `
UPDATE games
SET title=$2, description=$3, difficulty=$4, image_url=$5, game_url=$6, game_type=$7, enabled=$8
WHERE id=$1
RETURNING created_at`
	g := &model.Game{ID: id, GameFields: f}
	err := q.QueryRow(ctx, upd, id, f.Title, f.Description, f.Difficulty, f.ImageURL, f.GameURL, f.GameType, f.Enabled).
		Scan(&g.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errs.ErrNotFound
	case isUniqueViolation(err):
		return nil, errs.ErrAlreadyExists
	case err != nil:
		return nil, err
	}

	if len(f.Controls) == 0 {
		if g.Controls, err = selectControls(ctx, q, id); err != nil {
			return nil, err
		}
		return g, nil
	}
	if _, err = q.Exec(ctx, `DELETE FROM game_controls WHERE game_id=$1`, id); err != nil {
		return nil, err
	}
	if g.Controls, err = insertControls(ctx, q, id, f.Controls); err != nil {
		return nil, err
	}
	return g, nil
}

// insertControls stores controls using their position as order index.
func insertControls(ctx context.Context, q querier, gameID int64, cs []model.Control) ([]model.Control, error) {
	const ins = `INSERT INTO game_controls (game_id, key_image, description, sort_order) VALUES ($1,$2,$3,$4)`
	out := make([]model.Control, 0, len(cs))
	for i, c := range cs {
		c.Order = i + 1
		if _, err := q.Exec(ctx, ins, gameID, c.KeyImage, c.Description, c.Order); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func selectControls(ctx context.Context, q querier, gameID int64) ([]model.Control, error) {
	const sel = `SELECT key_image, description, sort_order FROM game_controls WHERE game_id=$1 ORDER BY sort_order, id`
	rows, err := q.Query(ctx, sel, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Control
	for rows.Next() {
		var c model.Control
		if err := rows.Scan(&c.KeyImage, &c.Description, &c.Order); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
