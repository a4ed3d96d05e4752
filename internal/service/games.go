package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// Difficulty bounds of a game.
const (
	MinDifficulty = 1
	MaxDifficulty = 3
)

// GameService defines direct catalog operations.
type GameService interface {
	// List returns games most recent first.
	List(ctx context.Context, enabledOnly bool) ([]model.Game, error)
	// Get returns a game with ordered controls.
	Get(ctx context.Context, id int64) (*model.Game, error)
	// Create inserts a game.
	Create(ctx context.Context, sub model.Subject, f model.GameFields) (*model.Game, error)
	// Update merges patch into a game; controls are replaced when supplied.
	Update(ctx context.Context, sub model.Subject, id int64, patch model.GamePatch) (*model.Game, error)
	// Delete removes a game and everything that references it.
	Delete(ctx context.Context, sub model.Subject, id int64) error
}

type GameServiceImpl struct {
	games  repository.GameRepository
	policy authz.Policy
	cache  LeaderboardCache
	log    *zap.Logger
}

// NewGameService constructs GameService. cache may be nil.
func NewGameService(games repository.GameRepository, policy authz.Policy, cache LeaderboardCache, log *zap.Logger) *GameServiceImpl {
	if cache == nil {
		cache = noCache{}
	}
	return &GameServiceImpl{games: games, policy: policy, cache: cache, log: log}
}

// NormalizeFields trims text fields and validates a full field set.
func NormalizeFields(f model.GameFields) (model.GameFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.ImageURL = strings.TrimSpace(f.ImageURL)
	f.GameURL = strings.TrimSpace(f.GameURL)
	f.GameType = strings.TrimSpace(f.GameType)
	if f.Title == "" {
		return f, invalid("title is required")
	}
	if f.Description == "" {
		return f, invalid("description is required")
	}
	if f.Difficulty < MinDifficulty || f.Difficulty > MaxDifficulty {
		return f, invalid("difficulty %d outside %d..%d", f.Difficulty, MinDifficulty, MaxDifficulty)
	}
	for i, c := range f.Controls {
		if strings.TrimSpace(c.KeyImage) == "" {
			return f, invalid("control %d: key image is required", i)
		}
	}
	return f, nil
}

// List returns games most recent first.
func (s *GameServiceImpl) List(ctx context.Context, enabledOnly bool) ([]model.Game, error) {
	return s.games.List(ctx, enabledOnly)
}

// Get returns a game.
func (s *GameServiceImpl) Get(ctx context.Context, id int64) (*model.Game, error) {
	return s.games.Get(ctx, id)
}

// Create validates and inserts a game; a taken title is a conflict.
func (s *GameServiceImpl) Create(ctx context.Context, sub model.Subject, f model.GameFields) (*model.Game, error) {
	if !s.policy.Permits(sub.Role, authz.ObjGame, authz.ActCreate) {
		return nil, forbidden(authz.ActCreate, authz.ObjGame)
	}
	f, err := NormalizeFields(f)
	if err != nil {
		return nil, err
	}
	g, err := s.games.Create(ctx, f)
	if err != nil {
		return nil, err
	}
	s.log.Info("game created", zap.Int64("game_id", g.ID), zap.Int64("by", sub.UserID))
	return g, nil
}

// Update merges patch into the current fields.
func (s *GameServiceImpl) Update(ctx context.Context, sub model.Subject, id int64, patch model.GamePatch) (*model.Game, error) {
	if !s.policy.Permits(sub.Role, authz.ObjGame, authz.ActUpdate) {
		return nil, forbidden(authz.ActUpdate, authz.ObjGame)
	}
	cur, err := s.games.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return cur, nil
	}
	f := patch.Apply(cur.GameFields)
	if len(patch.Controls) == 0 {
		f.Controls = nil
	}
	if f, err = NormalizeFields(f); err != nil {
		return nil, err
	}
	g, err := s.games.Update(ctx, id, f)
	if err != nil {
		return nil, err
	}
	s.log.Info("game updated", zap.Int64("game_id", id), zap.Int64("by", sub.UserID))
	return g, nil
}

// Delete removes a game and drops its cached leaderboard.
func (s *GameServiceImpl) Delete(ctx context.Context, sub model.Subject, id int64) error {
	if !s.policy.Permits(sub.Role, authz.ObjGame, authz.ActDelete) {
		return forbidden(authz.ActDelete, authz.ObjGame)
	}
	if err := s.games.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	s.log.Info("game deleted", zap.Int64("game_id", id), zap.Int64("by", sub.UserID))
	return nil
}
