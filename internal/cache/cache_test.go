package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *countingObserver) ObserveCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis, *countingObserver) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	obs := &countingObserver{}
	return New(client, ttl, obs), mr, obs
}

type payload struct {
	Total float64 `json:"total"`
}

func TestFetch_CachesLoaderResult(t *testing.T) {
	c, _, obs := newTestCache(t, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (payload, error) {
		calls++
		return payload{Total: 42.5}, nil
	}

	key, err := c.Key(ctx, "fueltec", "2025-03-01", "2025-03-17")
	require.NoError(t, err)

	got, err := Fetch(ctx, c, key, loader)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.Total)

	got, err = Fetch(ctx, c, key, loader)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.Total)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestFetch_ExpiresAfterTTL(t *testing.T) {
	c, mr, _ := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (payload, error) {
		calls++
		return payload{Total: float64(calls)}, nil
	}

	_, err := Fetch(ctx, c, "k", loader)
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)

	got, err := Fetch(ctx, c, "k", loader)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Total)
}

func TestBump_ChangesKeys(t *testing.T) {
	c, _, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	before, err := c.Key(ctx, "ranking")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	after, err := c.Key(ctx, "ranking")
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestFetch_LoaderErrorIsNotCached(t *testing.T) {
	c, mr, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, err := Fetch(ctx, c, "k", func(context.Context) (payload, error) {
		return payload{}, errors.New("backend down")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestNilCache_UsesLoader(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	key, err := c.Key(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "posto:a:b", key)

	got, err := Fetch(ctx, c, key, func(context.Context) (payload, error) {
		return payload{Total: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Total)
	assert.NoError(t, c.Bump(ctx))
	assert.NoError(t, c.Close())
}

func TestFetch_ConcurrentMissesShareOneLoad(t *testing.T) {
	c, mr, obs := newTestCache(t, time.Minute)
	ctx := context.Background()

	const callers = 8
	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) (payload, error) {
		calls.Add(1)
		<-release
		return payload{Total: 7}, nil
	}

	var wg sync.WaitGroup
	results := make([]payload, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Fetch(ctx, c, "fueltec:k", loader)
		}()
	}

	require.Eventually(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.misses == callers
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, 7.0, results[i].Total)
	}
	assert.True(t, mr.Exists("fueltec:k"))
}

func TestFetch_CallerCancelDoesNotAbortSharedLoad(t *testing.T) {
	c, mr, _ := newTestCache(t, time.Minute)

	release := make(chan struct{})
	var loaderErr atomic.Value
	loader := func(ctx context.Context) (payload, error) {
		<-release
		if err := ctx.Err(); err != nil {
			loaderErr.Store(err)
		}
		return payload{Total: 3}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, "k", loader)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return mr.Exists("k") }, time.Second, 5*time.Millisecond)
	assert.Nil(t, loaderErr.Load())
}

// failingSet rejects every SET, as a read-only replica would.
type failingSet struct{}

func (failingSet) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failingSet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" {
			return errors.New("READONLY You can't write against a read only replica")
		}
		return next(ctx, cmd)
	}
}

func (failingSet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestFetch_WriteFailureStillReturnsValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(failingSet{})
	t.Cleanup(func() { _ = client.Close() })
	c := New(client, time.Minute, nil)

	got, err := Fetch(context.Background(), c, "k", func(context.Context) (payload, error) {
		return payload{Total: 9.5}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 9.5, got.Total)
	assert.False(t, mr.Exists("k"))
}
