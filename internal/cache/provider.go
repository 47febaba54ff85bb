package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Provider defines the byte-level cache operations the memo layer needs.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider implements Provider but never stores data.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX pretends to store the value and reports success.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

// Del is a no-op for the noop cache.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }

// MemoryProvider is a process-local Provider with per-entry expiry, used when no Redis is
// configured and by the CLI. Expired entries are swept as new keys arrive, and at most
// maxEntries are held; past that an arbitrary entry is evicted.
type MemoryProvider struct {
	mu         sync.RWMutex
	data       map[string]entry
	now        func() time.Time
	maxEntries int
	nextSweep  int
	lastSweep  time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

const (
	defaultMaxEntries = 100_000
	minSweepSize      = 1024
	sweepInterval     = time.Minute
)

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		data:       make(map[string]entry),
		now:        time.Now,
		maxEntries: defaultMaxEntries,
		nextSweep:  minSweepSize,
	}
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (c *MemoryProvider) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// Get returns a copy of the stored value, or ErrCacheMiss when absent or expired.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && cur.expired(c.now()) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value; a non-positive ttl never expires.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value, ttl)
	return nil
}

// SetNX stores value only when key is absent or expired.
func (c *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.data[key]; ok && !e.expired(c.now()) {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

// put stores a copy of value. Callers hold the write lock.
func (c *MemoryProvider) put(key string, value []byte, ttl time.Duration) {
	if _, exists := c.data[key]; !exists {
		now := c.now()
		if len(c.data) >= c.nextSweep || now.Sub(c.lastSweep) >= sweepInterval {
			c.sweep(now)
		}
		if c.maxEntries > 0 && len(c.data) >= c.maxEntries {
			for k := range c.data {
				delete(c.data, k)
				break
			}
		}
	}
	c.data[key] = entry{value: append([]byte(nil), value...), expiresAt: c.expiry(ttl)}
}

// sweep drops expired entries; the next size-triggered sweep waits until the map doubles.
func (c *MemoryProvider) sweep(now time.Time) {
	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
		}
	}
	c.lastSweep = now
	c.nextSweep = max(2*len(c.data), minSweepSize)
}

// Del removes an entry.
func (c *MemoryProvider) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Close drops every entry.
func (c *MemoryProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	return nil
}
