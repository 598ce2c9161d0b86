package redis

import (
	"context"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// PlayerCache caches player profiles to reduce load on hot reads.
type PlayerCache struct {
	cache *Cache
}

// NewPlayerCache creates a new PlayerCache.
func NewPlayerCache(cache *Cache) *PlayerCache {
	return &PlayerCache{cache: cache}
}

// Get returns a cached player, or ErrCacheMiss.
func (p *PlayerCache) Get(ctx context.Context, playerID shared.PlayerID) (*player.Player, error) {
	var cached player.Player
	if err := p.cache.Get(ctx, PlayerKey(playerID.String()), &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

// Set caches a player.
func (p *PlayerCache) Set(ctx context.Context, pl *player.Player, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLProfileCache
	}
	return p.cache.Set(ctx, PlayerKey(pl.ID.String()), pl, ttl)
}

// Invalidate drops a cached player.
func (p *PlayerCache) Invalidate(ctx context.Context, playerID shared.PlayerID) error {
	return p.cache.Delete(ctx, PlayerKey(playerID.String()))
}
