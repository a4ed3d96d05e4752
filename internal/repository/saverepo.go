package repository

import (
	"context"

	"github.com/and161185/cybergames/internal/model"
)

// SaveRepository stores per-slot progress and highscores.
type SaveRepository interface {
	// GetOrCreate returns the save for key, creating an empty one on first read.
	GetOrCreate(ctx context.Context, key model.SaveKey) (*model.Save, error)
	// Upsert stores data for key, inserting the row when absent.
	Upsert(ctx context.Context, key model.SaveKey, data string) (*model.Save, error)
	// GetHighscore returns the highscore of a save.
	GetHighscore(ctx context.Context, saveID int64) (*model.Highscore, error)
	// RaiseHighscore inserts the first score or raises a lower stored one.
	// changed is false when the stored score was kept.
	RaiseHighscore(ctx context.Context, saveID, gameID, score int64) (hs *model.Highscore, changed bool, err error)
	// Leaderboard returns the top limit highscores of a game.
	Leaderboard(ctx context.Context, gameID int64, limit int) ([]model.LeaderboardEntry, error)
}
