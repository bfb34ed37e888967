package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stocktracker/internal/cache"
	"stocktracker/internal/model"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetOrCompute_CoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	// Arrange
	store := cache.New()
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"a", "b"}, nil
	}

	// Act
	const callers = 8
	results := make([][]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrCompute(t.Context(), store, "news:AAPL", time.Hour, compute)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Assert
	require.EqualValues(t, 1, calls.Load())
	for i, r := range results {
		require.NoError(t, errs[i])
		require.Equal(t, []string{"a", "b"}, r)
	}
}

func TestGetOrCompute_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	clk := newClock()
	store := cache.New(cache.WithClock(clk.Now))
	var calls atomic.Int32
	compute := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	v, err := cache.GetOrCompute(t.Context(), store, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	clk.Advance(59 * time.Second)
	v, err = cache.GetOrCompute(t.Context(), store, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	// A read exactly at stored_at+ttl is a miss.
	clk.Advance(time.Second)
	v, err = cache.GetOrCompute(t.Context(), store, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestGetOrCompute_CachesEmptyButNotErrors(t *testing.T) {
	t.Parallel()

	store := cache.New()
	var calls atomic.Int32

	empty := func(context.Context) ([]model.NewsArticle, error) {
		calls.Add(1)
		return []model.NewsArticle{}, nil
	}
	for range 3 {
		v, err := cache.GetOrCompute(t.Context(), store, "news:XYZ", time.Hour, empty)
		require.NoError(t, err)
		require.Empty(t, v)
	}
	require.EqualValues(t, 1, calls.Load())

	boom := errors.New("boom")
	failing := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}
	for range 2 {
		_, err := cache.GetOrCompute(t.Context(), store, "market:XYZ", time.Hour, failing)
		require.ErrorIs(t, err, boom)
	}
	require.EqualValues(t, 3, calls.Load())
}

func TestGetOrCompute_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := cache.New()
	for i, key := range []string{"news:AAPL", "news:MSFT", "sentiment:AAPL"} {
		v, err := cache.GetOrCompute(t.Context(), store, key, time.Hour, func(context.Context) (string, error) {
			return fmt.Sprint(i), nil
		})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprint(i), v)
	}
	store.Delete("news:MSFT")
	_, ok := store.Get("news:MSFT")
	require.False(t, ok)
	v, ok := store.Get("news:AAPL")
	require.True(t, ok)
	require.Equal(t, "0", v)
}

func TestGetOrCompute_WaiterHonorsContext(t *testing.T) {
	t.Parallel()

	store := cache.New()
	started, release := make(chan struct{}), make(chan struct{})
	defer close(release)
	go func() {
		_, _ = cache.GetOrCompute(context.Background(), store, "slow", time.Hour, func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := cache.GetOrCompute(ctx, store, "slow", time.Hour, func(context.Context) (int, error) {
		return 2, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetOrCompute_FlightOutlivesFirstCaller(t *testing.T) {
	t.Parallel()

	// Arrange
	store := cache.New(cache.WithComputeTimeout(5 * time.Second))
	var calls atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	firstCtx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCompute(firstCtx, store, "shared", time.Hour, fn)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	secondErr := make(chan error, 1)
	go func() {
		v, err := cache.GetOrCompute(context.Background(), store, "shared", time.Hour, fn)
		second <- v
		secondErr <- err
	}()

	// Act: the first caller gives up, then the computation finishes.
	require.ErrorIs(t, <-firstErr, context.DeadlineExceeded)
	close(release)

	// Assert
	require.Equal(t, 42, <-second)
	require.NoError(t, <-secondErr)
	require.EqualValues(t, 1, calls.Load())
	v, ok := store.Get("shared")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestSet_EvictsExpiredThenOldest(t *testing.T) {
	t.Parallel()

	clk := newClock()
	store := cache.New(cache.WithClock(clk.Now), cache.WithMaxItems(2))

	store.Set("short", 1, time.Second)
	clk.Advance(time.Minute)
	store.Set("old", 2, time.Hour)
	clk.Advance(time.Minute)
	store.Set("new", 3, time.Hour)

	// "short" was expired, so it went first.
	require.Equal(t, 2, store.Len())
	_, ok := store.Get("old")
	require.True(t, ok)

	clk.Advance(time.Minute)
	store.Set("newest", 4, time.Hour)
	require.Equal(t, 2, store.Len())
	_, ok = store.Get("old")
	require.False(t, ok)
	_, ok = store.Get("new")
	require.True(t, ok)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	r, err := model.ParseDateRange("2024-01-01", "2024-02-01")
	require.NoError(t, err)
	require.Equal(t, "market:AAPL:2024-01-01:2024-02-01", cache.MarketKey("AAPL", r))
	require.Equal(t, "news:AAPL", cache.NewsKey("AAPL"))
	require.Equal(t, "profile:AAPL", cache.ProfileKey("AAPL"))
	require.Equal(t, "recommendations:AAPL", cache.RecommendationsKey("AAPL"))
}
