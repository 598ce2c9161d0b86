package jobs

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/pkg/timeutil"
)

func newGuardJob(t *testing.T) *WeeklyRollupJob {
	t.Helper()

	mr := miniredis.RunT(t)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := redisx.DefaultConfig()
	cfg.Host = host
	cfg.Port = port

	cache, err := redisx.NewCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return NewWeeklyRollupJob(nil, nil, nil, nil, nil, cache, nil, DefaultWeeklyRollupConfig())
}

func TestWeeklyRollup_GuardBlocksRepeatedWeek(t *testing.T) {
	job := newGuardJob(t)
	ctx := context.Background()
	key := weekGuardKey(shared.EventID("ev-1"), timeutil.LastWeek(time.Now()))

	acquired, err := job.acquireWeekGuard(ctx, key)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = job.acquireWeekGuard(ctx, key)
	require.NoError(t, err)
	assert.False(t, acquired, "processed week must not fold twice")
}

func TestWeeklyRollup_GuardReleasedAfterFailedFold(t *testing.T) {
	job := newGuardJob(t)
	ctx := context.Background()
	key := weekGuardKey(shared.EventID("ev-1"), timeutil.LastWeek(time.Now()))

	acquired, err := job.acquireWeekGuard(ctx, key)
	require.NoError(t, err)
	require.True(t, acquired)

	// A failed fold drops the marker, so the next run retries the week
	// instead of skipping it until the TTL expires.
	job.releaseWeekGuard(ctx, key)

	acquired, err = job.acquireWeekGuard(ctx, key)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestWeeklyRollup_GuardDisabledWithoutCache(t *testing.T) {
	job := NewWeeklyRollupJob(nil, nil, nil, nil, nil, nil, nil, DefaultWeeklyRollupConfig())
	ctx := context.Background()

	acquired, err := job.acquireWeekGuard(ctx, "weekly_rollup:ev-1:2026-W35")
	require.NoError(t, err)
	assert.True(t, acquired)
}
