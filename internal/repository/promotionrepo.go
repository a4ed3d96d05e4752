package repository

import (
	"context"
	"time"

	"github.com/and161185/cybergames/internal/model"
)

// PromotionRepository stores moderator promotion requests.
type PromotionRepository interface {
	// Create inserts a PENDING request; a second PENDING request of the same user is a conflict.
	Create(ctx context.Context, userID int64, reason string) (*model.PromotionRequest, error)
	// Get loads a request with requester and reviewer references.
	Get(ctx context.Context, id int64) (*model.PromotionRequest, error)
	// HasPending reports whether the user holds a PENDING request.
	HasPending(ctx context.Context, userID int64) (bool, error)
	// List returns requests; empty status means all. Pending lists are oldest first.
	List(ctx context.Context, status model.Status) ([]model.PromotionRequest, error)
	// Latest returns the user's most recent request.
	Latest(ctx context.Context, userID int64) (*model.PromotionRequest, error)
	// Review stamps decision and, on approval, promotes the requester in the same transaction.
	Review(ctx context.Context, id int64, decision model.Status, reviewerID int64, at time.Time) (*model.PromotionRequest, error)
	// DeletePending removes a PENDING request owned by userID.
	DeletePending(ctx context.Context, id, userID int64) error
}
