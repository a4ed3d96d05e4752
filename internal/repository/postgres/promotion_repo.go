package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
	"github.com/jackc/pgx/v5"
)

// PromotionRepo implements PromotionRepository using PostgreSQL.
type PromotionRepo struct{ db *DB }

// NewPromotionRepo constructs a moderator request repository.
func NewPromotionRepo(db *DB) *PromotionRepo { return &PromotionRepo{db: db} }

const promoSelect = `
SELECT m.id, m.user_id, m.reason, m.status, m.reviewed_by, m.reviewed_at, m.created_at,
       u.username, u.full_name, u.email, u.role,
       rv.username, rv.full_name
FROM moderator_requests m
JOIN users u ON u.id = m.user_id
LEFT JOIN users rv ON rv.id = m.reviewed_by`

func scanPromotion(row pgx.Row) (*model.PromotionRequest, error) {
	var (
		pr               model.PromotionRequest
		status, role     string
		user             model.UserRef
		rvName, rvFullNm *string
	)
	err := row.Scan(&pr.ID, &pr.UserID, &pr.Reason, &status, &pr.ReviewedBy, &pr.ReviewedAt, &pr.CreatedAt,
		&user.Username, &user.FullName, &user.Email, &role, &rvName, &rvFullNm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	pr.Status = model.Status(status)
	user.ID = pr.UserID
	user.Role = model.Role(role)
	pr.User = &user
	if pr.ReviewedBy != nil && rvName != nil {
		rv := model.UserRef{ID: *pr.ReviewedBy, Username: *rvName}
		if rvFullNm != nil {
			rv.FullName = *rvFullNm
		}
		pr.Reviewer = &rv
	}
	return &pr, nil
}

// Create inserts a PENDING request. The partial unique index rejects a second pending one.
func (r *PromotionRepo) Create(ctx context.Context, userID int64, reason string) (*model.PromotionRequest, error) {
	const q = `INSERT INTO moderator_requests (user_id, reason) VALUES ($1, $2) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, userID, reason).Scan(&id); err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, fmt.Errorf("user %d already has a pending request: %w", userID, errs.ErrConflict)
		case isForeignKeyViolation(err):
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

// Get loads a request with requester and reviewer.
func (r *PromotionRepo) Get(ctx context.Context, id int64) (*model.PromotionRequest, error) {
	return scanPromotion(r.db.Pool.QueryRow(ctx, promoSelect+` WHERE m.id=$1`, id))
}

// HasPending reports whether the user holds a PENDING request.
func (r *PromotionRepo) HasPending(ctx context.Context, userID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM moderator_requests WHERE user_id=$1 AND status='PENDING')`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// List returns requests by status; pending requests come oldest first, others most recent first.
func (r *PromotionRepo) List(ctx context.Context, status model.Status) ([]model.PromotionRequest, error) {
	q := promoSelect + ` WHERE ($1 = '' OR m.status = $1) ORDER BY m.created_at DESC, m.id DESC`
	if status == model.StatusPending {
		q = promoSelect + ` WHERE m.status = $1 ORDER BY m.created_at ASC, m.id ASC`
	}
	rows, err := r.db.Pool.Query(ctx, q, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PromotionRequest{}
	for rows.Next() {
		pr, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

// Latest returns the user's most recent request.
func (r *PromotionRepo) Latest(ctx context.Context, userID int64) (*model.PromotionRequest, error) {
	q := promoSelect + ` WHERE m.user_id=$1 ORDER BY m.created_at DESC, m.id DESC LIMIT 1`
	return scanPromotion(r.db.Pool.QueryRow(ctx, q, userID))
}

// Review stamps the decision and, on approval, promotes the requester. Both
// writes commit together.
func (r *PromotionRepo) Review(
	ctx context.Context, id int64, decision model.Status, reviewerID int64, at time.Time,
) (*model.PromotionRequest, error) {
	var pr *model.PromotionRequest
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var (
			userID int64
			status string
		)
		const sel = `SELECT user_id, status FROM moderator_requests WHERE id=$1 FOR UPDATE`
		if err := tx.QueryRow(ctx, sel, id).Scan(&userID, &status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if model.Status(status) != model.StatusPending {
			return fmt.Errorf("moderator request %d already %s: %w", id, status, errs.ErrConflict)
		}

		const upd = `UPDATE moderator_requests SET status=$2, reviewed_by=$3, reviewed_at=$4 WHERE id=$1`
		if _, err := tx.Exec(ctx, upd, id, string(decision), reviewerID, at); err != nil {
			return err
		}
		if decision == model.StatusApproved {
			// An account promoted to ADMIN meanwhile keeps its role.
			const promote = `UPDATE users SET role='MODERATOR' WHERE id=$1 AND role='USER'`
			if _, err := tx.Exec(ctx, promote, userID); err != nil {
				return err
			}
		}

		var err error
		pr, err = scanPromotion(tx.QueryRow(ctx, promoSelect+` WHERE m.id=$1`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// DeletePending removes a PENDING request owned by userID.
func (r *PromotionRepo) DeletePending(ctx context.Context, id, userID int64) error {
	const q = `DELETE FROM moderator_requests WHERE id=$1 AND user_id=$2 AND status='PENDING'`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("moderator request %d: %w", id, errs.ErrConflict)
	}
	return nil
}
