package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func testPage() *ranking.Page {
	return &ranking.Page{
		Entries: []ranking.RankedPlayer{
			{Rank: 1, PlayerID: "p1", DisplayName: "ace", Value: 1400, MatchesPlayed: 12},
			{Rank: 2, PlayerID: "p2", DisplayName: "bolt", Value: 1250, MatchesPlayed: 9},
		},
		Page:         1,
		PageSize:     20,
		TotalPlayers: 2,
		TotalPages:   1,
		GeneratedAt:  time.Now().UTC(),
	}
}

func TestLeaderboardCache_PageRoundtrip(t *testing.T) {
	cache, _ := newTestCache(t)
	lb := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()
	scope := ranking.Scope{Kind: ranking.ScopeOverall}

	_, err := lb.GetPage(ctx, scope, ranking.SortByOverall, 1, 20)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, lb.SetPage(ctx, scope, ranking.SortByOverall, testPage()))

	got, err := lb.GetPage(ctx, scope, ranking.SortByOverall, 1, 20)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, shared.PlayerID("p1"), got.Entries[0].PlayerID)
	assert.Equal(t, 1400, got.Entries[0].Value)
	assert.Equal(t, 2, got.TotalPlayers)
}

func TestLeaderboardCache_InvalidateScope(t *testing.T) {
	cache, _ := newTestCache(t)
	lb := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	overall := ranking.Scope{Kind: ranking.ScopeOverall}
	event := ranking.Scope{Kind: ranking.ScopeEvent, EventID: "e1"}

	require.NoError(t, lb.SetPage(ctx, overall, ranking.SortByOverall, testPage()))
	require.NoError(t, lb.SetPage(ctx, event, ranking.SortByOverall, testPage()))

	require.NoError(t, lb.Invalidate(ctx, overall))

	_, err := lb.GetPage(ctx, overall, ranking.SortByOverall, 1, 20)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// The other scope is untouched.
	_, err = lb.GetPage(ctx, event, ranking.SortByOverall, 1, 20)
	assert.NoError(t, err)
}

func TestLeaderboardCache_RankChanges(t *testing.T) {
	cache, _ := newTestCache(t)
	lb := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()
	scope := ranking.Scope{Kind: ranking.ScopeOverall}

	first := testPage()
	require.NoError(t, lb.RecordRanks(ctx, scope, first.Entries))

	previous, err := lb.PreviousRanks(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, shared.Rank(1), previous["p1"])
	assert.Equal(t, shared.Rank(2), previous["p2"])

	// Players swapped places since the last capture.
	swapped := testPage()
	swapped.Entries[0].PlayerID = "p2"
	swapped.Entries[1].PlayerID = "p1"

	require.NoError(t, lb.AttachRankChanges(ctx, scope, swapped))
	assert.Equal(t, ranking.ChangeFromPrevious(1, 2), swapped.Entries[0].RankChange)
	assert.Equal(t, ranking.ChangeFromPrevious(2, 1), swapped.Entries[1].RankChange)
}

func TestRecomputeLock_DropSemantics(t *testing.T) {
	cache, mr := newTestCache(t)
	lock := NewRecomputeLock(cache, time.Minute)
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "recompute:e1")
	require.NoError(t, err)
	assert.True(t, ok)

	// A second acquire is dropped, never queued.
	ok, err = lock.TryAcquire(ctx, "recompute:e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "recompute:e1"))

	ok, err = lock.TryAcquire(ctx, "recompute:e1")
	require.NoError(t, err)
	assert.True(t, ok)

	// The TTL bounds a stuck holder.
	mr.FastForward(2 * time.Minute)
	ok, err = lock.TryAcquire(ctx, "recompute:e1")
	require.NoError(t, err)
	assert.True(t, ok)
}
