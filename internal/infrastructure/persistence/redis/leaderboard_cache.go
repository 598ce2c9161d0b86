package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Caches whole ranking pages under a short TTL, and keeps the last
// observed rank per player in a long-lived hash so pages can show rank
// changes. The database stays the source of truth; every write path
// that affects ranks invalidates the scope's pages.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache caches hot ranking pages.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

// scopeTag renders a scope into a stable key segment.
func scopeTag(scope ranking.Scope) string {
	switch scope.Kind {
	case ranking.ScopeCluster:
		return "cluster:" + scope.ClusterID
	case ranking.ScopeEvent:
		return "event:" + scope.EventID.String()
	default:
		return "overall"
	}
}

// GetPage returns a cached ranking page, or ErrCacheMiss.
func (l *LeaderboardCache) GetPage(ctx context.Context, scope ranking.Scope, key ranking.SortKey, page, pageSize int) (*ranking.Page, error) {
	var cached ranking.Page
	err := l.cache.Get(ctx, LeaderboardPageKey(scopeTag(scope), string(key), page, pageSize), &cached)
	if err != nil {
		return nil, err
	}
	return &cached, nil
}

// SetPage caches a ranking page under the scope's TTL.
func (l *LeaderboardCache) SetPage(ctx context.Context, scope ranking.Scope, key ranking.SortKey, p *ranking.Page) error {
	return l.cache.Set(ctx, LeaderboardPageKey(scopeTag(scope), string(key), p.Page, p.PageSize), p, l.ttl)
}

// Invalidate drops all cached pages of a scope, every sort key and
// page size included.
func (l *LeaderboardCache) Invalidate(ctx context.Context, scope ranking.Scope) error {
	return l.cache.DeleteByPattern(ctx, PrefixLeaderboard+scopeTag(scope)+":*")
}

// InvalidateAll drops every cached ranking page.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	return l.cache.DeleteByPattern(ctx, PrefixLeaderboard+"*")
}

// ─────────────────────────────────────────────────────────────────────────────
// PREVIOUS RANKS
// ─────────────────────────────────────────────────────────────────────────────

// PreviousRanks returns the last recorded rank per player for a scope.
// Players absent from the hash were not ranked at the previous capture.
func (l *LeaderboardCache) PreviousRanks(ctx context.Context, scope ranking.Scope) (map[shared.PlayerID]shared.Rank, error) {
	raw, err := l.cache.HGetAll(ctx, PreviousRanksKey(scopeTag(scope)))
	if err != nil {
		return nil, err
	}

	ranks := make(map[shared.PlayerID]shared.Rank, len(raw))
	for id, value := range raw {
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		ranks[shared.PlayerID(id)] = shared.Rank(n)
	}
	return ranks, nil
}

// RecordRanks overwrites the previous-rank state of a scope with the
// current page's ranks. Called after serving a fresh page so the next
// capture can report movement.
func (l *LeaderboardCache) RecordRanks(ctx context.Context, scope ranking.Scope, entries []ranking.RankedPlayer) error {
	if len(entries) == 0 {
		return nil
	}

	key := PreviousRanksKey(scopeTag(scope))
	client := l.cache.Client()

	pipe := client.Pipeline()
	for _, e := range entries {
		pipe.HSet(ctx, key, e.PlayerID.String(), fmt.Sprintf("%d", e.Rank.Int()))
	}
	pipe.Expire(ctx, key, TTLPreviousRanks)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record ranks: %w", err)
	}
	return nil
}

// AttachRankChanges fills RankChange on the page's entries from the
// previous-rank state. Missing state leaves changes at zero.
func (l *LeaderboardCache) AttachRankChanges(ctx context.Context, scope ranking.Scope, p *ranking.Page) error {
	previous, err := l.PreviousRanks(ctx, scope)
	if err != nil {
		return err
	}
	for i := range p.Entries {
		prev, ok := previous[p.Entries[i].PlayerID]
		if !ok {
			continue
		}
		p.Entries[i].RankChange = ranking.ChangeFromPrevious(p.Entries[i].Rank, prev)
	}
	return nil
}
