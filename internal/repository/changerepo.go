package repository

import (
	"context"
	"time"

	"github.com/and161185/cybergames/internal/model"
)

// ChangeRequestRepository stores catalog change requests.
type ChangeRequestRepository interface {
	// Create inserts a PENDING request.
	Create(ctx context.Context, authorID int64, p model.Proposal) (*model.ChangeRequest, error)
	// Get loads a request by ID.
	Get(ctx context.Context, id int64) (*model.ChangeRequest, error)
	// List returns requests most recent first; empty status means all.
	List(ctx context.Context, status model.Status) ([]model.ChangeRequest, error)
	// ListByAuthor returns the author's requests.
	ListByAuthor(ctx context.Context, authorID int64) ([]model.ChangeRequest, error)
	// UpdatePending replaces the proposal of a request that is still PENDING.
	UpdatePending(ctx context.Context, id int64, p model.Proposal) (*model.ChangeRequest, error)
	// DeletePending removes a request that is still PENDING.
	DeletePending(ctx context.Context, id int64) error
	// Review moves a PENDING request to decision and, on approval, applies its
	// snapshot to the catalog in the same transaction. The game is nil on rejection.
	Review(ctx context.Context, id int64, decision model.Status, reviewerID int64, at time.Time) (*model.ChangeRequest, *model.Game, error)
}
