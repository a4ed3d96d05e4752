// Package service contains the application services of the game platform:
// accounts, catalog, change workflow, moderator promotion and saves.
package service

import (
	"context"
	"fmt"

	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/model"
)

// LeaderboardCache is a best-effort copy of game leaderboards. Get reports the
// generation of the game even on a miss; Put must be given that generation and
// drops the board when Invalidate ran in between.
type LeaderboardCache interface {
	Get(ctx context.Context, gameID int64) ([]model.LeaderboardEntry, int64, bool)
	Put(ctx context.Context, gameID, gen int64, entries []model.LeaderboardEntry)
	Invalidate(ctx context.Context, gameID int64)
}

type noCache struct{}

func (noCache) Get(context.Context, int64) ([]model.LeaderboardEntry, int64, bool) {
	return nil, -1, false
}
func (noCache) Put(context.Context, int64, int64, []model.LeaderboardEntry) {}
func (noCache) Invalidate(context.Context, int64)                           {}

func forbidden(act, obj string) error {
	return fmt.Errorf("%s %s: %w", act, obj, errs.ErrForbidden)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errs.ErrInvalidArgument)...)
}
