// Package cache keeps a read-through copy of game leaderboards in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/model"
)

// Depth is how many leaderboard rows are cached per game.
const Depth = 100

type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Leaderboards caches the top Depth entries of each game. A nil *Leaderboards
// is a disabled cache: every Get misses and writes are dropped.
// Redis failures are logged and treated as misses.
//
// Each game has a generation counter; boards are stored under the generation
// they were read at and Invalidate bumps the counter, so a fill that races
// with an invalidation lands on a key nobody reads.
type Leaderboards struct {
	kv  store
	ttl time.Duration
	log *zap.Logger
}

// Connect parses a redis:// URL, pings the server and returns a cache over it.
func Connect(ctx context.Context, url string, ttl time.Duration, log *zap.Logger) (*Leaderboards, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, ttl, log), rdb, nil
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Leaderboards {
	return &Leaderboards{kv: rdb, ttl: ttl, log: log}
}

func genKey(gameID int64) string { return fmt.Sprintf("leaderboard:%d:gen", gameID) }

func key(gameID, gen int64) string { return fmt.Sprintf("leaderboard:%d:%d", gameID, gen) }

// Get returns the cached entries of a game and the generation they belong to.
// On a miss the generation is still returned for the following Put; it is
// negative when the counter could not be read.
func (c *Leaderboards) Get(ctx context.Context, gameID int64) ([]model.LeaderboardEntry, int64, bool) {
	if c == nil {
		return nil, -1, false
	}
	gen, err := c.kv.Get(ctx, genKey(gameID)).Int64()
	if errors.Is(err, redis.Nil) {
		gen, err = 0, nil
	}
	if err != nil {
		c.log.Warn("leaderboard cache generation", zap.Int64("game_id", gameID), zap.Error(err))
		return nil, -1, false
	}
	raw, err := c.kv.Get(ctx, key(gameID, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("leaderboard cache get", zap.Int64("game_id", gameID), zap.Error(err))
		}
		return nil, gen, false
	}
	var out []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn("leaderboard cache decode", zap.Int64("game_id", gameID), zap.Error(err))
		return nil, gen, false
	}
	return out, gen, true
}

// Put stores entries read at generation gen for the configured TTL.
func (c *Leaderboards) Put(ctx context.Context, gameID, gen int64, entries []model.LeaderboardEntry) {
	if c == nil || gen < 0 {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, key(gameID, gen), raw, c.ttl).Err(); err != nil {
		c.log.Warn("leaderboard cache put", zap.Int64("game_id", gameID), zap.Error(err))
	}
}

// Invalidate moves a game to a new generation. Boards of older generations
// are left to expire.
func (c *Leaderboards) Invalidate(ctx context.Context, gameID int64) {
	if c == nil {
		return
	}
	if err := c.kv.Incr(ctx, genKey(gameID)).Err(); err != nil {
		c.log.Warn("leaderboard cache invalidate", zap.Int64("game_id", gameID), zap.Error(err))
	}
}
