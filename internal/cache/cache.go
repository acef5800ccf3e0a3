// Package cache provides the deterministic result cache: completed reports
// keyed by a content hash of the request, bounded by TTL and entry count.
package cache

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultTTL             = time.Hour
	DefaultMaxEntries      = 100
	DefaultCleanupInterval = 5 * time.Minute
)

// Entry is a cached result and its bookkeeping.
type Entry struct {
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	LastAccess  time.Time       `json:"last_access"`
	AccessCount int             `json:"access_count"`
	Size        int             `json:"size"`
}

// Config controls cache bounds.
type Config struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
	Logger          *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Size        int     `json:"size"`
	MemoryBytes int     `json:"memory_bytes"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	MaxEntries  int     `json:"max_entries"`
	TTLSeconds  float64 `json:"ttl_seconds"`
}

// Cache stores completed results. Safe for concurrent use.
//
// Entries live in a go-cache store whose janitor drops anything that outlived
// its TTL in wall-clock time. Expiry is also checked on read against the
// configured clock, so a stale entry is never returned.
type Cache struct {
	mu     sync.Mutex
	store  *gocache.Cache
	ttl    time.Duration
	max    int
	now    func() time.Time
	logger *slog.Logger

	hits, misses           int64
	evictions, expirations int64
}

// New creates a cache, filling zero config values with defaults.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		store:  gocache.New(cfg.TTL, cfg.CleanupInterval),
		ttl:    cfg.TTL,
		max:    cfg.MaxEntries,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// Get returns the payload stored under key. A hit refreshes the entry's
// access time; an expired entry is removed and counted as a miss.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.store.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	e := v.(*Entry)
	now := c.now()
	if c.expired(e, now) {
		c.store.Delete(key)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.LastAccess = now
	e.AccessCount++
	c.hits++
	return e.Payload, true
}

// Set stores payload under key. When the cache is full, expired entries are
// dropped first and then the least recently accessed entry is evicted.
func (c *Cache) Set(key string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.store.Get(key); !exists && c.store.ItemCount() >= c.max {
		c.sweepLocked(now)
		if c.store.ItemCount() >= c.max {
			c.evictOldestLocked()
		}
	}

	stored := make(json.RawMessage, len(payload))
	copy(stored, payload)
	c.store.Set(key, &Entry{
		Key:        key,
		Payload:    stored,
		CreatedAt:  now,
		LastAccess: now,
		Size:       len(stored),
	}, gocache.DefaultExpiration)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(key)
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.DeleteExpired()
	n := c.store.ItemCount()
	c.store.Flush()
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.sweepLocked(c.now())
	if n > 0 {
		c.logger.Debug("cache sweep", "expired", n)
	}
	return n
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, item := range c.store.Items() {
		if !c.expired(item.Object.(*Entry), now) {
			n++
		}
	}
	return n
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		MaxEntries:  c.max,
		TTLSeconds:  c.ttl.Seconds(),
	}
	for _, item := range c.store.Items() {
		e := item.Object.(*Entry)
		if c.expired(e, now) {
			continue
		}
		s.Size++
		s.MemoryBytes += e.Size + len(e.Key)
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	return s
}

func (c *Cache) expired(e *Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) >= c.ttl
}

// sweepLocked drops entries past their TTL. go-cache hides entries whose
// wall-clock expiry has passed from Items but still counts them in ItemCount,
// so those are deleted through the store first.
func (c *Cache) sweepLocked(now time.Time) int {
	before := c.store.ItemCount()
	c.store.DeleteExpired()
	n := before - c.store.ItemCount()
	for key, item := range c.store.Items() {
		if c.expired(item.Object.(*Entry), now) {
			c.store.Delete(key)
			n++
		}
	}
	c.expirations += int64(n)
	return n
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, item := range c.store.Items() {
		e := item.Object.(*Entry)
		if oldestKey == "" || e.LastAccess.Before(oldest) {
			oldestKey = key
			oldest = e.LastAccess
		}
	}
	if oldestKey == "" {
		return
	}
	c.store.Delete(oldestKey)
	c.evictions++
	c.logger.Debug("cache eviction", "key", oldestKey)
}
