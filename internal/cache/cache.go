package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
	DefaultShards     = 16
)

var (
	ErrEmptyKey = errors.New("empty cache key")
	ErrNilValue = errors.New("nil cache value")
)

type Config struct {
	TTL         time.Duration
	MaxEntries  int
	RecordStats bool
	Shards      int
	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
	// OnFault receives storage faults raised inside GetOrLoad.
	OnFault func(*Fault)
}

// DefaultConfig mirrors the production defaults: five minute TTL, ten
// thousand entries, stats on.
func DefaultConfig() Config {
	return Config{
		TTL:         DefaultTTL,
		MaxEntries:  DefaultMaxEntries,
		RecordStats: true,
		Shards:      DefaultShards,
	}
}

// Fault is a cache read or write problem. Callers treat it as a miss and
// compute directly.
type Fault struct {
	Op  string
	Key string
	Err error
}

func (f *Fault) Error() string { return "cache " + f.Op + " " + f.Key + ": " + f.Err.Error() }
func (f *Fault) Unwrap() error { return f.Err }

type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Size        int     `json:"size"`
	MaxEntries  int     `json:"maxEntries"`
	HitRate     float64 `json:"hitRate"`
}

type entry struct {
	key        string
	value      any
	insertedAt time.Time
	// touched is the cache-wide access sequence number of the last write or hit.
	touched uint64
}

type shard struct {
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front is most recently used
}

// Cache is a bounded key/value store with write-time TTL expiry and LRU
// eviction. Shards only split the locking: capacity and LRU order are
// cache-wide. It is safe for concurrent use.
type Cache struct {
	cfg    Config
	shards []*shard
	group  singleflight.Group

	size    atomic.Int64
	seq     atomic.Uint64
	gen     atomic.Uint64 // bumped by Clear
	evictMu sync.Mutex

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.Shards > cfg.MaxEntries {
		cfg.Shards = cfg.MaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{cfg: cfg, shards: make([]*shard, cfg.Shards)}
	for i := range c.shards {
		c.shards[i] = &shard{
			items: make(map[string]*list.Element),
			lru:   list.New(),
		}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get returns the live value for key. Expired entries are dropped on read.
func (c *Cache) Get(key string) (any, bool) {
	s := c.shardFor(key)
	now := c.cfg.Now()

	s.mu.Lock()
	el, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		c.count(&c.misses)
		return nil, false
	}
	e := el.Value.(*entry)
	if c.expired(e, now) {
		c.remove(s, el)
		s.mu.Unlock()
		c.count(&c.expirations)
		c.count(&c.misses)
		return nil, false
	}
	e.touched = c.seq.Add(1)
	s.lru.MoveToFront(el)
	v := e.value
	s.mu.Unlock()

	c.count(&c.hits)
	return v, true
}

// Set stores value under key. When the cache grows past MaxEntries the
// least recently used entry across all shards is evicted.
func (c *Cache) Set(key string, value any) error {
	return c.set(key, value, nil)
}

// set stores value unless gen is non-nil and a Clear has happened since it
// was read. The check runs under the shard lock, so a Clear racing with the
// write either blocks it or removes it.
func (c *Cache) set(key string, value any, gen *uint64) error {
	if key == "" {
		return &Fault{Op: "set", Key: key, Err: ErrEmptyKey}
	}
	if value == nil {
		return &Fault{Op: "set", Key: key, Err: ErrNilValue}
	}
	s := c.shardFor(key)
	now := c.cfg.Now()

	s.mu.Lock()
	if gen != nil && c.gen.Load() != *gen {
		s.mu.Unlock()
		return nil
	}
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = now
		e.touched = c.seq.Add(1)
		s.lru.MoveToFront(el)
		s.mu.Unlock()
		return nil
	}
	s.items[key] = s.lru.PushFront(&entry{key: key, value: value, insertedAt: now, touched: c.seq.Add(1)})
	size := c.size.Add(1)
	s.mu.Unlock()

	if size > int64(c.cfg.MaxEntries) {
		c.evict()
	}
	return nil
}

// evict removes global LRU entries until the cache is back at capacity.
// Each shard's list is ordered by touched, so the global LRU entry is the
// shard tail with the smallest sequence number.
func (c *Cache) evict() {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	for c.size.Load() > int64(c.cfg.MaxEntries) {
		var victim *shard
		var oldest uint64
		for _, s := range c.shards {
			s.mu.Lock()
			if el := s.lru.Back(); el != nil {
				if t := el.Value.(*entry).touched; victim == nil || t < oldest {
					victim, oldest = s, t
				}
			}
			s.mu.Unlock()
		}
		if victim == nil {
			return
		}

		victim.mu.Lock()
		if el := victim.lru.Back(); el != nil {
			c.remove(victim, el)
			c.count(&c.evictions)
		}
		victim.mu.Unlock()
	}
}

func (c *Cache) Delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	if el, ok := s.items[key]; ok {
		c.remove(s, el)
	}
	s.mu.Unlock()
}

// GetOrLoad returns the cached value for key or runs load once for all
// concurrent callers missing the same key. Load errors are returned and
// never cached. hit reports whether the value came from the cache.
//
// The shared load runs under a context detached from any one caller's
// cancellation, so one caller giving up does not fail the others. Each
// caller still stops waiting when its own ctx is done. A load that was
// already running when Clear was called is returned but not stored.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (v any, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.gen.Load()
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if ferr := c.set(key, v, &gen); ferr != nil && c.cfg.OnFault != nil {
			var f *Fault
			if errors.As(ferr, &f) {
				c.cfg.OnFault(f)
			}
		}
		return v, nil
	})

	select {
	case r := <-ch:
		return r.Val, false, r.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Clear drops every entry. Counters are kept. Loads in flight when Clear
// is called do not write their results back.
func (c *Cache) Clear() {
	c.gen.Add(1)
	for _, s := range c.shards {
		s.mu.Lock()
		c.size.Add(-int64(s.lru.Len()))
		s.items = make(map[string]*list.Element)
		s.lru.Init()
		s.mu.Unlock()
	}
}

// PurgeExpired removes every expired entry and returns how many it removed.
func (c *Cache) PurgeExpired() int {
	now := c.cfg.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.lru.Back(); el != nil; {
			prev := el.Prev()
			if c.expired(el.Value.(*entry), now) {
				c.remove(s, el)
				removed++
			}
			el = prev
		}
		s.mu.Unlock()
	}
	if c.cfg.RecordStats && removed > 0 {
		c.expirations.Add(uint64(removed))
	}
	return removed
}

func (c *Cache) Len() int {
	return int(c.size.Load())
}

func (c *Cache) Stats() Stats {
	st := Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        c.Len(),
		MaxEntries:  c.cfg.MaxEntries,
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

func (c *Cache) TTL() time.Duration { return c.cfg.TTL }

// --- helpers ---

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.After(e.insertedAt.Add(c.cfg.TTL))
}

func (c *Cache) count(n *atomic.Uint64) {
	if c.cfg.RecordStats {
		n.Add(1)
	}
}

// remove drops el from s. The caller holds s.mu.
func (c *Cache) remove(s *shard, el *list.Element) {
	delete(s.items, el.Value.(*entry).key)
	s.lru.Remove(el)
	c.size.Add(-1)
}
