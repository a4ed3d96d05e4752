package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// Leaderboard limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// SaveService defines per-slot progress and highscore operations. Keys are
// always scoped to the caller.
type SaveService interface {
	// GetSave returns the caller's save, creating an empty one on first read.
	GetSave(ctx context.Context, sub model.Subject, gameID int64, slot int) (*model.Save, error)
	// SaveGame stores the caller's progress; last write wins.
	SaveGame(ctx context.Context, sub model.Subject, gameID int64, slot int, data string) (*model.Save, error)
	// GetHighscore returns the stored highscore or a synthetic zero.
	GetHighscore(ctx context.Context, sub model.Subject, gameID int64, slot int) (*model.Highscore, error)
	// UpdateHighscore records score when it is the first or beats the stored one.
	UpdateHighscore(ctx context.Context, sub model.Subject, gameID int64, slot int, score int64) (*model.Highscore, error)
	// Leaderboard returns the best scores of a game.
	Leaderboard(ctx context.Context, gameID int64, limit int) ([]model.LeaderboardEntry, error)
}

type SaveServiceImpl struct {
	saves  repository.SaveRepository
	policy authz.Policy
	cache  LeaderboardCache
	depth  int
	log    *zap.Logger
	now    func() time.Time
}

// NewSaveService constructs SaveService. cache may be nil; depth is how many
// rows a cached leaderboard holds.
func NewSaveService(saves repository.SaveRepository, policy authz.Policy, cache LeaderboardCache, depth int, log *zap.Logger) *SaveServiceImpl {
	if cache == nil {
		cache = noCache{}
	}
	if depth < MaxLeaderboardLimit {
		depth = MaxLeaderboardLimit
	}
	return &SaveServiceImpl{saves: saves, policy: policy, cache: cache, depth: depth, log: log, now: time.Now}
}

func (s *SaveServiceImpl) key(sub model.Subject, gameID int64, slot int, act string) (model.SaveKey, error) {
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjSave, OwnerID: sub.UserID}, act) {
		return model.SaveKey{}, forbidden(act, authz.ObjSave)
	}
	if gameID <= 0 {
		return model.SaveKey{}, invalid("game id %d", gameID)
	}
	if slot < 0 {
		return model.SaveKey{}, invalid("slot %d", slot)
	}
	return model.SaveKey{UserID: sub.UserID, GameID: gameID, Slot: slot}, nil
}

// GetSave returns the save, auto-vivifying it.
func (s *SaveServiceImpl) GetSave(ctx context.Context, sub model.Subject, gameID int64, slot int) (*model.Save, error) {
	key, err := s.key(sub, gameID, slot, authz.ActRead)
	if err != nil {
		return nil, err
	}
	return s.saves.GetOrCreate(ctx, key)
}

// SaveGame upserts the save blob.
func (s *SaveServiceImpl) SaveGame(ctx context.Context, sub model.Subject, gameID int64, slot int, data string) (*model.Save, error) {
	key, err := s.key(sub, gameID, slot, authz.ActUpdate)
	if err != nil {
		return nil, err
	}
	return s.saves.Upsert(ctx, key, data)
}

// GetHighscore returns a synthetic, unpersisted zero score when none was recorded.
func (s *SaveServiceImpl) GetHighscore(ctx context.Context, sub model.Subject, gameID int64, slot int) (*model.Highscore, error) {
	key, err := s.key(sub, gameID, slot, authz.ActRead)
	if err != nil {
		return nil, err
	}
	sv, err := s.saves.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	if sv.Highscore != nil {
		return sv.Highscore, nil
	}
	now := s.now().UTC()
	return &model.Highscore{SaveID: sv.ID, GameID: gameID, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateHighscore ensures the save exists, then raises its highscore.
func (s *SaveServiceImpl) UpdateHighscore(ctx context.Context, sub model.Subject, gameID int64, slot int, score int64) (*model.Highscore, error) {
	key, err := s.key(sub, gameID, slot, authz.ActUpdate)
	if err != nil {
		return nil, err
	}
	sv, err := s.saves.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	hs, changed, err := s.saves.RaiseHighscore(ctx, sv.ID, gameID, score)
	if err != nil {
		return nil, err
	}
	if changed {
		s.cache.Invalidate(ctx, gameID)
		s.log.Debug("highscore raised", zap.Int64("user_id", sub.UserID), zap.Int64("game_id", gameID), zap.Int64("score", hs.Score))
	}
	return hs, nil
}

// Leaderboard serves from the cache when the limit fits in a cached page.
func (s *SaveServiceImpl) Leaderboard(ctx context.Context, gameID int64, limit int) ([]model.LeaderboardEntry, error) {
	if gameID <= 0 {
		return nil, invalid("game id %d", gameID)
	}
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}

	entries, gen, ok := s.cache.Get(ctx, gameID)
	if !ok {
		var err error
		if entries, err = s.saves.Leaderboard(ctx, gameID, s.depth); err != nil {
			return nil, err
		}
		s.cache.Put(ctx, gameID, gen, entries)
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
