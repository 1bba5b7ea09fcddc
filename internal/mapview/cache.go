package mapview

import "sync"

// BuildFunc constructs the map
type BuildFunc func() (*Map, error)

// Cache holds at most one built map. The first Get runs the build while
// holding the lock, so concurrent callers wait for that build instead of
// starting their own. A failed build leaves the slot empty and the next Get
// retries.
//
// Every caller receives the same *Map. It is shared across goroutines and
// must be treated as read-only.
type Cache struct {
	mu    sync.Mutex
	built *Map
	build BuildFunc
}

// NewCache creates a cache around a build function
func NewCache(build BuildFunc) *Cache {
	return &Cache{build: build}
}

// Get returns the cached map, building it on first use. The returned map is
// shared; callers must not modify it.
func (c *Cache) Get() (*Map, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built != nil {
		return c.built, nil
	}
	m, err := c.build()
	if err != nil {
		return nil, err
	}
	c.built = m
	return m, nil
}

// Built reports whether the map has been built
func (c *Cache) Built() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.built != nil
}
