package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 100
)

// Options configures a Cache. Zero values fall back to the defaults and
// time.Now.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Now        func() time.Time
}

type entry struct {
	value      interface{}
	insertedAt time.Time
	expiresAt  time.Time
	seq        uint64
}

// Cache is a time-boxed, capacity-bounded read-through cache. Expiry is passive:
// entries are checked on access and never swept in the background. When the
// cache is full the entry with the oldest insertion time is evicted. Concurrent
// fetches for the same key share one underlying call.
type Cache struct {
	mu         sync.Mutex
	items      *gocache.Cache
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	seq        uint64

	group    singleflight.Group
	fetching map[string]int
	// seq of the last Set or Clear per key, kept only while a fetch is in flight
	written   map[string]uint64
	flushedAt uint64
}

func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		// expiry is tracked per entry against the injected clock, so go-cache
		// runs without its own expiration or janitor
		items:      gocache.New(gocache.NoExpiration, 0),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		fetching:   make(map[string]int),
		written:    make(map[string]uint64),
	}
}

func (c *Cache) lookup(key string) (entry, bool) {
	v, found := c.items.Get(key)
	if !found {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}

// Get returns the value stored under key. An expired entry is removed and
// reported as missing.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.items.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry first when a new key
// would exceed the capacity.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(key, value)
	c.touch(key)
}

func (c *Cache) set(key string, value interface{}) {
	if _, exists := c.lookup(key); !exists && c.items.ItemCount() >= c.maxEntries {
		c.evictOldest()
	}

	now := c.now()
	c.seq++
	c.items.Set(key, entry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(c.ttl),
		seq:        c.seq,
	}, gocache.NoExpiration)
}

// touch marks key as written so that an in-flight fetch does not overwrite it.
func (c *Cache) touch(key string) {
	c.seq++
	if c.fetching[key] > 0 {
		c.written[key] = c.seq
	}
}

func (c *Cache) evictOldest() {
	var (
		oldestKey string
		oldest    entry
	)
	for k, item := range c.items.Items() {
		e, ok := item.Object.(entry)
		if !ok {
			continue
		}
		if oldestKey == "" || e.insertedAt.Before(oldest.insertedAt) ||
			(e.insertedAt.Equal(oldest.insertedAt) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldestKey != "" {
		c.items.Delete(oldestKey)
		metrics.RecordCacheEviction()
	}
}

func (c *Cache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Delete(key)
	c.touch(key)
}

// ClearAll drops every entry and forgets in-flight fetches, so the next caller
// for a key starts a fresh one.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Flush()
	c.seq++
	c.flushedAt = c.seq
	for key := range c.fetching {
		c.group.Forget(key)
	}
}

// IsExpired reports true for missing entries as well as stale ones.
func (c *Cache) IsExpired(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		return true
	}
	return c.now().After(e.expiresAt)
}

// IsFetching reports whether a fetch for key is in flight.
func (c *Cache) IsFetching(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching[key] > 0
}

// GetOrCreatePendingRequest runs fetch unless a fetch for key is already in
// flight, in which case the caller waits for and shares that result. The
// result is not stored; see Load for the read-through variant.
func (c *Cache) GetOrCreatePendingRequest(key string, fetch func() (interface{}, error)) (interface{}, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		c.fetching[key]++
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			if c.fetching[key]--; c.fetching[key] <= 0 {
				delete(c.fetching, key)
				delete(c.written, key)
			}
			c.mu.Unlock()
		}()

		return fetch()
	})
	return v, err
}

// Keys lists the keys currently held, expired or not.
func (c *Cache) Keys() []string {
	items := c.items.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

// Invalidate clears every key containing pattern and returns how many were removed.
func (c *Cache) Invalidate(pattern string) int {
	removed := 0
	for _, key := range c.Keys() {
		if strings.Contains(key, pattern) {
			c.Clear(key)
			removed++
		}
	}
	return removed
}

// InvalidateUser clears the per-user entries for uid.
func (c *Cache) InvalidateUser(uid string) {
	c.Clear(UserKey(uid))
	c.Clear(WalletKey(uid))
	c.Clear(TransactionsKey(uid))
	c.Clear(WorksKey(uid))
}

// mark returns the current write sequence.
func (c *Cache) mark() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// setUnlessWritten stores value unless key was set or cleared after mark.
func (c *Cache) setUnlessWritten(key string, value interface{}, mark uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.written[key] > mark || c.flushedAt > mark {
		return false
	}
	c.set(key, value)
	return true
}

// Load returns the cached value for key or fetches, stores and returns it.
// Concurrent loads of the same missing key trigger one fetch. A fetch that
// overlaps a Set or Clear of the same key returns its value without storing it.
func Load[T any](c *Cache, key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.RecordCacheLookup(true)
			return typed, nil
		}
	}
	metrics.RecordCacheLookup(false)

	v, err := c.GetOrCreatePendingRequest(key, func() (interface{}, error) {
		mark := c.mark()
		// a fetch that completed since the lookup above has already stored the value
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		c.setUnlessWritten(key, value, mark)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}
