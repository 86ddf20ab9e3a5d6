package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// DescriptorCache maps identity keys to face descriptors for the lifetime of
// the process. Entries are overwritten, never merged, and only leave the cache
// through Delete or Clear. Growth is unbounded; crossing warnSize logs once.
type DescriptorCache struct {
	mu      sync.RWMutex
	entries map[string]domain.Descriptor

	warnSize int
	warned   atomic.Bool
	logger   *slog.Logger
}

// Option configures a DescriptorCache.
type Option func(*DescriptorCache)

// WithWarnSize logs a capacity warning the first time the cache grows past n
// entries. Zero disables the warning.
func WithWarnSize(n int) Option {
	return func(c *DescriptorCache) {
		c.warnSize = n
	}
}

// WithLogger sets the logger used for capacity warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *DescriptorCache) {
		c.logger = logger
	}
}

// NewDescriptorCache creates an empty cache.
func NewDescriptorCache(opts ...Option) *DescriptorCache {
	c := &DescriptorCache{
		entries: make(map[string]domain.Descriptor),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the descriptor stored for key.
func (c *DescriptorCache) Get(key string) (domain.Descriptor, bool) {
	c.mu.RLock()
	d, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Set stores a copy of d under key, replacing any previous entry.
func (c *DescriptorCache) Set(key string, d domain.Descriptor) {
	stored := d.Clone()

	c.mu.Lock()
	c.entries[key] = stored
	size := len(c.entries)
	c.mu.Unlock()

	if c.warnSize > 0 && size > c.warnSize && c.warned.CompareAndSwap(false, true) {
		c.logger.Warn("descriptor cache exceeded capacity warning size",
			slog.Int("size", size),
			slog.Int("warn_size", c.warnSize),
		)
	}
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *DescriptorCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry and returns how many were removed.
func (c *DescriptorCache) Clear() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]domain.Descriptor)
	c.mu.Unlock()

	c.warned.Store(false)
	return n
}

// Size returns the number of cached descriptors.
func (c *DescriptorCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
