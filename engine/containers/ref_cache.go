package containers

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Handle is one reference to a cached value. Every handle to the same entry
// shares its ID.
type Handle[K comparable, V any] struct {
	ID  uuid.UUID
	Key K

	value    V
	released bool
}

func (h *Handle[K, V]) Value() V {
	return h.value
}

type cacheEntry[V any] struct {
	id    uuid.UUID
	value V
	refs  int
}

// RefCache shares one value per key between any number of holders. The value
// is built on first Acquire and handed to evict when the last handle is
// released.
type RefCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[V]
	evict   func(key K, value V)
}

func NewRefCache[K comparable, V any](evict func(key K, value V)) *RefCache[K, V] {
	return &RefCache[K, V]{
		entries: make(map[K]*cacheEntry[V]),
		evict:   evict,
	}
}

// Acquire returns a handle to the value stored under key, calling create
// only when no live entry exists.
func (c *RefCache[K, V]) Acquire(key K, create func() (V, error)) (*Handle[K, V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		v, err := create()
		if err != nil {
			return nil, errors.Wrapf(err, "creating cache entry %v", key)
		}
		e = &cacheEntry[V]{id: uuid.New(), value: v}
		c.entries[key] = e
	}
	e.refs++
	return &Handle[K, V]{ID: e.id, Key: key, value: e.value}, nil
}

// Release drops one reference. Releasing a handle twice is a programming error.
func (c *RefCache[K, V]) Release(h *Handle[K, V]) error {
	if h == nil {
		return errors.AssertionFailedf("release of nil cache handle")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h.released {
		return errors.AssertionFailedf("cache handle %s for %v released twice", h.ID, h.Key)
	}
	e, ok := c.entries[h.Key]
	if !ok || e.id != h.ID {
		return errors.AssertionFailedf("cache handle %s for %v is stale", h.ID, h.Key)
	}
	h.released = true
	e.refs--
	if e.refs == 0 {
		delete(c.entries, h.Key)
		if c.evict != nil {
			c.evict(h.Key, e.value)
		}
	}
	return nil
}

// Refs is the number of live handles for key.
func (c *RefCache[K, V]) Refs(key K) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.refs
	}
	return 0
}

func (c *RefCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear evicts every entry regardless of outstanding handles. Used at shutdown.
func (c *RefCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		delete(c.entries, k)
		if c.evict != nil {
			c.evict(k, e.value)
		}
	}
}
