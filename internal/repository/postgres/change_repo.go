package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/jackc/pgx/v5"
)

// ChangeRepo implements ChangeRequestRepository using PostgreSQL.
type ChangeRepo struct{ db *DB }

// NewChangeRepo constructs a change request repository.
func NewChangeRepo(db *DB) *ChangeRepo { return &ChangeRepo{db: db} }

const changeCols = `id, target_game_id, change_type, title, description, difficulty, image_url, game_url, game_type, enabled, controls, status, author_id, reviewed_by, reviewed_at, created_at`

func scanChange(row pgx.Row) (*model.ChangeRequest, error) {
	var (
		cr       model.ChangeRequest
		target   *int64
		kind     string
		f        model.GameFields
		controls []byte
		status   string
	)
	err := row.Scan(&cr.ID, &target, &kind, &f.Title, &f.Description, &f.Difficulty, &f.ImageURL, &f.GameURL,
		&f.GameType, &f.Enabled, &controls, &status, &cr.AuthorID, &cr.ReviewedBy, &cr.ReviewedAt, &cr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if len(controls) > 0 {
		if err := json.Unmarshal(controls, &f.Controls); err != nil {
			return nil, fmt.Errorf("change request %d: controls: %w", cr.ID, err)
		}
	}
	var targetID int64
	if target != nil {
		targetID = *target
	}
	p, ok := model.NewProposal(model.ChangeKind(kind), targetID, f)
	if !ok {
		return nil, fmt.Errorf("change request %d: bad variant %q/%d", cr.ID, kind, targetID)
	}
	cr.Proposal = p
	cr.Status = model.Status(status)
	return &cr, nil
}

// controlsArg encodes a controls snapshot; no controls are stored as NULL.
func controlsArg(cs []model.Control) (any, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func targetArg(p model.Proposal) any {
	if p.Kind() == model.ChangeUpdate {
		return p.TargetID()
	}
	return nil
}

// Create inserts a PENDING request carrying the proposal snapshot.
func (r *ChangeRepo) Create(ctx context.Context, authorID int64, p model.Proposal) (*model.ChangeRequest, error) {
	f := p.Fields()
	ctrl, err := controlsArg(f.Controls)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO change_requests (target_game_id, change_type, title, description, difficulty, image_url, game_url, game_type, enabled, controls, author_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + changeCols
	return scanChange(r.db.Pool.QueryRow(ctx, q, targetArg(p), string(p.Kind()), f.Title, f.Description, f.Difficulty,
		f.ImageURL, f.GameURL, f.GameType, f.Enabled, ctrl, authorID))
}

// Get loads a request by id.
func (r *ChangeRepo) Get(ctx context.Context, id int64) (*model.ChangeRequest, error) {
	const q = `SELECT ` + changeCols + ` FROM change_requests WHERE id=$1`
	return scanChange(r.db.Pool.QueryRow(ctx, q, id))
}

// List returns requests with the given status (all when empty), most recent first.
func (r *ChangeRepo) List(ctx context.Context, status model.Status) ([]model.ChangeRequest, error) {
	const q = `SELECT ` + changeCols + ` FROM change_requests WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, string(status))
}

// ListByAuthor returns the author's requests, most recent first.
func (r *ChangeRepo) ListByAuthor(ctx context.Context, authorID int64) ([]model.ChangeRequest, error) {
	const q = `SELECT ` + changeCols + ` FROM change_requests WHERE author_id=$1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, authorID)
}

func (r *ChangeRepo) list(ctx context.Context, q string, arg any) ([]model.ChangeRequest, error) {
	rows, err := r.db.Pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ChangeRequest{}
	for rows.Next() {
		cr, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cr)
	}
	return out, rows.Err()
}

// UpdatePending replaces the snapshot of a PENDING request; a reviewed request is a conflict.
func (r *ChangeRepo) UpdatePending(ctx context.Context, id int64, p model.Proposal) (*model.ChangeRequest, error) {
	f := p.Fields()
	ctrl, err := controlsArg(f.Controls)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE change_requests
SET title=$2, description=$3, difficulty=$4, image_url=$5, game_url=$6, game_type=$7, enabled=$8, controls=$9
WHERE id=$1 AND status='PENDING'
RETURNING ` + changeCols
	cr, err := scanChange(r.db.Pool.QueryRow(ctx, q, id, f.Title, f.Description, f.Difficulty, f.ImageURL, f.GameURL,
		f.GameType, f.Enabled, ctrl))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("change request %d is not pending: %w", id, errs.ErrConflict)
	}
	return cr, err
}

// DeletePending removes a PENDING request.
func (r *ChangeRepo) DeletePending(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM change_requests WHERE id=$1 AND status='PENDING'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("change request %d is not pending: %w", id, errs.ErrConflict)
	}
	return nil
}

// Review locks the request, stamps the decision and, on approval, applies the
// snapshot to the catalog. Any failure rolls back the status change too.
func (r *ChangeRepo) Review(
	ctx context.Context, id int64, decision model.Status, reviewerID int64, at time.Time,
) (*model.ChangeRequest, *model.Game, error) {
	var (
		cr   *model.ChangeRequest
		game *model.Game
	)
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		const sel = `SELECT ` + changeCols + ` FROM change_requests WHERE id=$1 FOR UPDATE`
		cur, err := scanChange(tx.QueryRow(ctx, sel, id))
		if err != nil {
			return err
		}
		if cur.Status != model.StatusPending {
			return fmt.Errorf("change request %d already %s: %w", id, cur.Status, errs.ErrConflict)
		}

		const upd = `UPDATE change_requests SET status=$2, reviewed_by=$3, reviewed_at=$4 WHERE id=$1`
		if _, err = tx.Exec(ctx, upd, id, string(decision), reviewerID, at); err != nil {
			return err
		}
		cur.Status = decision
		cur.ReviewedBy = &reviewerID
		cur.ReviewedAt = &at
		cr = cur

		if decision != model.StatusApproved {
			return nil
		}
		switch p := cur.Proposal.(type) {
		case model.CreateProposal:
			game, err = insertGame(ctx, tx, p.F)
		case model.UpdateProposal:
			game, err = updateGame(ctx, tx, p.Target, p.F)
			if errors.Is(err, errs.ErrNotFound) {
				return fmt.Errorf("target game %d: %w", p.Target, errs.ErrNotFound)
			}
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return cr, game, nil
}
