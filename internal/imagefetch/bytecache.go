package imagefetch

import (
	"container/list"
	"sync"
)

// ByteCache holds raw image bytes keyed by exact URL. With maxEntries > 0 the
// least recently used URL is evicted once the cap is reached; zero means
// unbounded.
type ByteCache struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
}

type byteEntry struct {
	url  string
	data []byte
}

// NewByteCache creates a cache holding at most maxEntries URLs.
func NewByteCache(maxEntries int) *ByteCache {
	return &ByteCache{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the bytes cached for url and marks the entry as recently used.
func (c *ByteCache) Get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[url]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*byteEntry).data, true
}

// Set stores data for url, overwriting any previous bytes.
func (c *ByteCache) Set(url string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[url]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*byteEntry).data = data
		return
	}

	c.items[url] = c.ll.PushFront(&byteEntry{url: url, data: data})

	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*byteEntry).url)
	}
}

// Delete removes url from the cache.
func (c *ByteCache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[url]; ok {
		c.ll.Remove(el)
		delete(c.items, url)
	}
}

// Clear drops every entry and returns how many were removed.
func (c *ByteCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.ll.Len()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	return n
}

// Len returns the number of cached URLs.
func (c *ByteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
