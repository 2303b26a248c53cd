package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCapacity = 10000
	DefaultTTL      = 24 * time.Hour
)

// RequestCache is the bounded set of already-processed request ids.
// It guarantees at-most-once side effects under at-least-once delivery:
// the first Add for an id returns true, repeats within the TTL return
// false. Oldest entries are evicted when capacity is reached. Safe for
// concurrent use.
type RequestCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[uuid.UUID]*list.Element
	order    *list.List // front = oldest
	clock    func() time.Time
}

type requestEntry struct {
	id     uuid.UUID
	seenAt time.Time
}

func NewRequestCache(capacity int, ttl time.Duration) *RequestCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RequestCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  map[uuid.UUID]*list.Element{},
		order:    list.New(),
		clock:    time.Now,
	}
}

// NewRequestCacheWithClock lets tests control expiry.
func NewRequestCacheWithClock(capacity int, ttl time.Duration, clock func() time.Time) *RequestCache {
	c := NewRequestCache(capacity, ttl)
	c.clock = clock
	return c
}

// Add records the id and reports whether this is its first sighting.
func (c *RequestCache) Add(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	c.evictExpired(now)

	if _, ok := c.entries[id]; ok {
		return false
	}

	for len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushBack(requestEntry{id: id, seenAt: now})
	c.entries[id] = elem
	return true
}

// Seen reports whether the id is currently tracked, without recording it.
func (c *RequestCache) Seen(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired(c.clock())
	_, ok := c.entries[id]
	return ok
}

func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired(c.clock())
	return len(c.entries)
}

func (c *RequestCache) evictExpired(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(requestEntry)
		if now.Sub(entry.seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, entry.id)
	}
}

func (c *RequestCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(requestEntry)
	c.order.Remove(front)
	delete(c.entries, entry.id)
}
