package repository

import (
	"context"

	"github.com/and161185/cybergames/internal/model"
)

// GameRepository provides access to the live catalog.
type GameRepository interface {
	// Create inserts a game with its controls.
	Create(ctx context.Context, f model.GameFields) (*model.Game, error)
	// Update replaces a game's fields; controls are replaced only when supplied.
	Update(ctx context.Context, id int64, f model.GameFields) (*model.Game, error)
	// Get loads a game with ordered controls.
	Get(ctx context.Context, id int64) (*model.Game, error)
	// GetByTitle loads a game by its unique title.
	GetByTitle(ctx context.Context, title string) (*model.Game, error)
	// List returns games most recent first, optionally only enabled ones.
	List(ctx context.Context, enabledOnly bool) ([]model.Game, error)
	// Delete removes a game; controls, saves and highscores cascade.
	Delete(ctx context.Context, id int64) error
}
