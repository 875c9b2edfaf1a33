// Package imagecache memoizes decoded photos, bounded by entry count and by
// the decoded RGBA byte size of the cached images.
package imagecache

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	_ "golang.org/x/image/webp" // register WebP decoding
)

// Default limits.
const (
	DefaultMaxEntries = 100
	DefaultMaxCost    = 50 << 20
)

type entry struct {
	img  image.Image
	cost int64
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.LRU[string, entry]
	cost    int64
	maxCost int64

	hits, misses uint64
}

// New builds a cache. Non-positive limits fall back to the defaults.
func New(maxEntries int, maxCost int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}
	c := &Cache{maxCost: maxCost}
	// NewLRU only fails for a non-positive size.
	c.lru, _ = lru.NewLRU[string, entry](maxEntries, func(_ string, e entry) {
		c.cost -= e.cost
	})
	return c
}

// Cost returns the decoded RGBA size of an image.
func Cost(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// Image returns the decoded image for key, decoding data on a miss. Nil or
// undecodable data returns nil and leaves the cache untouched.
func (c *Cache) Image(key string, data []byte) image.Image {
	img, _ := c.Decode(key, data)
	return img
}

// Decode is Image with the decode error exposed.
func (c *Cache) Decode(key string, data []byte) (image.Image, error) {
	c.mu.Lock()
	if e, ok := c.lru.Get(key); ok {
		c.hits++
		c.mu.Unlock()
		return e.img, nil
	}
	c.misses++
	c.mu.Unlock()

	if len(data) == 0 {
		return nil, fmt.Errorf("no image data for %s", key)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	c.store(key, img)
	return img, nil
}

func (c *Cache) store(key string, img image.Image) {
	cost := Cost(img)
	c.mu.Lock()
	defer c.mu.Unlock()
	if cost > c.maxCost {
		return
	}
	c.lru.Remove(key)
	c.lru.Add(key, entry{img: img, cost: cost})
	c.cost += cost
	for c.cost > c.maxCost {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.cost = 0
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Cost returns the total decoded bytes held.
func (c *Cache) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// Counters reports cache hits and misses.
func (c *Cache) Counters() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
