package render

import (
	"crypto/sha256"
	"sync"

	"asset-studio/internal/imaging"
)

// DecodeCache memoizes decoded image payloads and their thumbnails by content
// hash. Cached images are shared and must not be modified.
type DecodeCache struct {
	mu       sync.RWMutex
	items    map[[sha256.Size]byte]*decodeEntry
	capacity int
}

type decodeEntry struct {
	decoded   *imaging.Decoded
	thumbnail []byte
	err       error // decode failures are cached too
}

// NewDecodeCache creates a cache holding at most capacity entries.
func NewDecodeCache(capacity int) *DecodeCache {
	if capacity <= 0 {
		capacity = 64
	}
	return &DecodeCache{items: make(map[[sha256.Size]byte]*decodeEntry), capacity: capacity}
}

// Len returns the number of cached entries.
func (c *DecodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *DecodeCache) resolve(raw []byte, thumbSize int) (*imaging.Decoded, []byte, error) {
	key := sha256.Sum256(raw)

	// Fast path: read lock
	c.mu.RLock()
	if e, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return e.decoded, e.thumbnail, e.err
	}
	c.mu.RUnlock()

	e := &decodeEntry{}
	e.decoded, e.err = imaging.Decode(raw)
	if e.err == nil && thumbSize > 0 {
		e.thumbnail, e.err = imaging.WebPBytes(imaging.Thumbnail(e.decoded.Image, thumbSize))
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[key]; ok {
		return prev.decoded, prev.thumbnail, prev.err
	}
	if len(c.items) >= c.capacity {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[key] = e
	return e.decoded, e.thumbnail, e.err
}
