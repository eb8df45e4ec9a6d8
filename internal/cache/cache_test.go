package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, maxEntries int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New(Config{
		TTL:         time.Minute,
		MaxEntries:  maxEntries,
		RecordStats: true,
		Now:         clock.Now,
	})
	return c, clock
}

func TestCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []int{1, 2, 3}))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, v)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Size)
	assert.InDelta(t, 0.5, st.HitRate, 1e-9)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(t, 10)
	require.NoError(t, c.Set("k", "v"))

	clock.Advance(time.Minute - time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok, "still live just before TTL")

	// reads do not extend a write-time TTL
	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.True(t, ok, "still live at exactly TTL")

	clock.Advance(time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired once age exceeds TTL")
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Expirations)
}

func TestCache_OverwriteResetsTTL(t *testing.T) {
	c, clock := newTestCache(t, 10)
	require.NoError(t, c.Set("k", 1))
	clock.Advance(50 * time.Second)
	require.NoError(t, c.Set("k", 2))
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 5
	c, _ := newTestCache(t, capacity)
	for i := 0; i < capacity; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("k%d", i), i))
	}

	// touch k0 so k1 becomes the oldest
	_, ok := c.Get("k0")
	require.True(t, ok)

	require.NoError(t, c.Set("k5", 5))
	assert.Equal(t, capacity, c.Len())

	_, ok = c.Get("k1")
	assert.False(t, ok, "least recently used entry evicted")
	for _, k := range []string{"k0", "k2", "k3", "k4", "k5"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_CapacityPlusOneInsertions(t *testing.T) {
	c, _ := newTestCache(t, 100)
	for i := 0; i <= 100; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("key-%d", i), i))
	}
	assert.Equal(t, 100, c.Len())
	_, ok := c.Get("key-0")
	assert.False(t, ok)
	_, ok = c.Get("key-100")
	assert.True(t, ok)
}

func TestCache_DefaultCapacityIsGlobal(t *testing.T) {
	c := New(DefaultConfig())
	require.Len(t, c.shards, DefaultShards)

	for i := 0; i <= DefaultMaxEntries; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("key-%d", i), i))
	}
	assert.Equal(t, DefaultMaxEntries, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)

	_, ok := c.Get("key-0")
	assert.False(t, ok, "oldest key is the one evicted")
	for _, i := range []int{1, 5000, DefaultMaxEntries} {
		_, ok := c.Get(fmt.Sprintf("key-%d", i))
		assert.True(t, ok, i)
	}
}

func TestCache_LeastRecentlyUsedAcrossShards(t *testing.T) {
	const capacity = 40
	c := New(Config{TTL: time.Minute, MaxEntries: capacity, Shards: 16, RecordStats: true})
	require.Len(t, c.shards, 16)

	for i := 0; i < capacity; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("k%d", i), i))
	}
	_, ok := c.Get("k0")
	require.True(t, ok)

	require.NoError(t, c.Set("k40", 40))
	require.NoError(t, c.Set("k41", 41))
	assert.Equal(t, capacity, c.Len())
	assert.Equal(t, uint64(2), c.Stats().Evictions)

	for _, k := range []string{"k1", "k2"} {
		_, ok := c.Get(k)
		assert.False(t, ok, k)
	}
	for _, k := range []string{"k0", "k3", "k39", "k40", "k41"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCache_ShardsNeverExceedCapacity(t *testing.T) {
	c := New(Config{MaxEntries: 4, Shards: 16})
	assert.Len(t, c.shards, 4)
}

func TestCache_RejectsEmptyKeyAndNil(t *testing.T) {
	c, _ := newTestCache(t, 10)

	var f *Fault
	require.ErrorAs(t, c.Set("", 1), &f)
	assert.ErrorIs(t, f, ErrEmptyKey)
	require.ErrorAs(t, c.Set("k", nil), &f)
	assert.ErrorIs(t, f, ErrNilValue)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ClearAndPurge(t *testing.T) {
	c, clock := newTestCache(t, 10)
	require.NoError(t, c.Set("a", 1))
	clock.Advance(30 * time.Second)
	require.NoError(t, c.Set("b", 2))
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_StatsDisabled(t *testing.T) {
	c := New(Config{MaxEntries: 10, RecordStats: false})
	require.NoError(t, c.Set("k", 1))
	c.Get("k")
	c.Get("nope")

	st := c.Stats()
	assert.Zero(t, st.Hits)
	assert.Zero(t, st.Misses)
	assert.Equal(t, 1, st.Size)
}

func TestCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(t, 10)
	var calls atomic.Int32
	load := func(context.Context) (any, error) {
		calls.Add(1)
		return "value", nil
	}

	v, hit, err := c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "value", v)

	v, hit, err = c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "value", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(t, 10)
	var calls atomic.Int32
	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) {
		calls.Add(1)
		return nil, fmt.Errorf("store down")
	})
	require.Error(t, err)

	v, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) {
		calls.Add(1)
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_GetOrLoadReportsFaults(t *testing.T) {
	var faults []*Fault
	c := New(Config{MaxEntries: 10, OnFault: func(f *Fault) { faults = append(faults, f) }})

	v, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
	require.Len(t, faults, 1)
	assert.Equal(t, "set", faults[0].Op)
}

func TestCache_GetOrLoadSurvivesCanceledCaller(t *testing.T) {
	c, _ := newTestCache(t, 10)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(ctx context.Context) (any, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "value", nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrLoad(firstCtx, "k", load)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   any
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, _, err := c.GetOrLoad(context.Background(), "k", load)
		second <- result{v, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, "value", r.v)
	assert.Equal(t, int32(1), calls.Load())

	v, ok := c.Get("k")
	require.True(t, ok, "shared load stored despite the first caller leaving")
	assert.Equal(t, "value", v)
}

func TestCache_ClearDropsInFlightLoad(t *testing.T) {
	c, _ := newTestCache(t, 10)
	started := make(chan struct{})
	release := make(chan struct{})

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- result{v, err}
	}()
	<-started

	c.Clear()
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "stale", r.v, "caller still gets its result")
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("k")
	assert.False(t, ok, "pre-clear result is not written back")

	// loads started after the clear are stored as usual
	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) { return "fresh", nil })
	require.NoError(t, err)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(Config{TTL: time.Minute, MaxEntries: 5000, Shards: 8, RecordStats: true})
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%700)
				if _, ok := c.Get(key); !ok {
					_ = c.Set(key, i)
				}
				if i%100 == 0 {
					c.PurgeExpired()
				}
			}
		}(g)
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, uint64(16*500), st.Hits+st.Misses)
	assert.LessOrEqual(t, st.Size, 700)
}

func TestCollector(t *testing.T) {
	c, _ := newTestCache(t, 10)
	require.NoError(t, c.Set("k", 1))
	c.Get("k")
	c.Get("x")

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector("analytics", c)))

	expected := `
# HELP analytics_cache_hits_total Result cache lookups served from the cache.
# TYPE analytics_cache_hits_total counter
analytics_cache_hits_total 1
# HELP analytics_cache_entries Entries currently held.
# TYPE analytics_cache_entries gauge
analytics_cache_entries 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"analytics_cache_hits_total", "analytics_cache_entries"))
}
