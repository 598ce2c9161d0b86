package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_Do_SingleCaller(t *testing.T) {
	g := New()

	called := false
	err := g.Do(context.Background(), "event-1", func(ctx context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, g.InFlight("event-1"))
}

func TestGroup_Do_DuplicateDropped(t *testing.T) {
	g := New()

	started := make(chan struct{})
	release := make(chan struct{})
	var executions int32

	go func() {
		_ = g.Do(context.Background(), "event-1", func(ctx context.Context) error {
			atomic.AddInt32(&executions, 1)
			close(started)
			<-release
			return nil
		})
	}()

	<-started

	// Second request for the same key must be dropped, not queued.
	err := g.Do(context.Background(), "event-1", func(ctx context.Context) error {
		atomic.AddInt32(&executions, 1)
		return nil
	})
	assert.ErrorIs(t, err, ErrInFlight)

	// A different key is unaffected.
	err = g.Do(context.Background(), "event-2", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	close(release)
	assert.Eventually(t, func() bool {
		return !g.InFlight("event-1")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestGroup_Do_ReleasedAfterError(t *testing.T) {
	g := New()

	boom := errors.New("boom")
	err := g.Do(context.Background(), "event-1", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Key must be usable again after the first call failed.
	err = g.Do(context.Background(), "event-1", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestGroup_TryAcquireRelease(t *testing.T) {
	g := New()

	require.True(t, g.TryAcquire("k"))
	assert.False(t, g.TryAcquire("k"))
	assert.True(t, g.InFlight("k"))
	assert.Equal(t, 1, g.Len())

	g.Release("k")
	assert.True(t, g.TryAcquire("k"))
	g.Release("k")
}

func TestGroup_OnDropCallback(t *testing.T) {
	var mu sync.Mutex
	var dropped []string

	g := New(WithOnDrop(func(key string) {
		mu.Lock()
		dropped = append(dropped, key)
		mu.Unlock()
	}))

	require.True(t, g.TryAcquire("event-9"))
	assert.False(t, g.TryAcquire("event-9"))
	g.Release("event-9")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"event-9"}, dropped)
}

func TestGroup_ConcurrentMixedKeys(t *testing.T) {
	g := New()

	const workers = 32
	var wg sync.WaitGroup
	var ran int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), "same-key", func(ctx context.Context) error {
				atomic.AddInt32(&ran, 1)
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	// At least one ran; the rest were either dropped or ran after a release.
	// Never more than the number of workers, and the map must end empty.
	assert.GreaterOrEqual(t, atomic.LoadInt32(&ran), int32(1))
	assert.Equal(t, 0, g.Len())
}
