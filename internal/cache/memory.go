package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geohealth/envfuse/internal/domain"
)

// Cached wraps a Store with an in-memory LRU layer so repeated requests for
// the same key skip deserialization entirely. Memory entries obey the same
// freshness windows as the backing store.
type Cached struct {
	inner Store
	cache *lruCache
	clock clockwork.Clock
}

// NewCached creates a read-through cache decorator around a Store.
func NewCached(inner Store, maxEntries int, clock clockwork.Clock) *Cached {
	return &Cached{
		inner: inner,
		cache: newLRUCache(maxEntries),
		clock: clock,
	}
}

func (c *Cached) Get(key Key) (*domain.HarmonizedResult, error) {
	if result, storedAt, ok := c.cache.get(key.String()); ok {
		if c.clock.Now().Sub(storedAt) < maxAgeFor(result.TimeRange.End, c.clock.Now()) {
			return result, nil
		}
		c.cache.remove(key.String())
	}
	result, err := c.inner.Get(key)
	if err != nil || result == nil {
		return result, err
	}
	c.cache.put(key.String(), result, c.clock.Now())
	return result, nil
}

func (c *Cached) Put(key Key, result *domain.HarmonizedResult) error {
	if err := c.inner.Put(key, result); err != nil {
		return err
	}
	c.cache.put(key.String(), result, c.clock.Now())
	return nil
}

// lruCache is a simple thread-safe LRU cache for harmonized results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key      string
	value    *domain.HarmonizedResult
	storedAt time.Time
	prev     *entry
	next     *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.HarmonizedResult, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	c.moveToFront(e)
	return e.value, e.storedAt, true
}

func (c *lruCache) put(key string, value *domain.HarmonizedResult, storedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = storedAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, storedAt: storedAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.unlink(e)
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
