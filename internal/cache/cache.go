// SPDX-License-Identifier: MIT

// Package cache provides a TTL cache for external lookup results
// (poster images, shortened links).
package cache

import (
	"sync"
	"time"
)

// Cache stores string lookup results with expiration.
type Cache interface {
	// Get retrieves a value. The second return is false if absent or expired.
	Get(key string) (string, bool)
	// Set stores a value with the given TTL.
	Set(key, value string, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Close releases background resources.
	Close()
}

type entry struct {
	value      string
	expiration time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiration)
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache. When cleanupInterval is
// positive a janitor goroutine removes expired entries periodically.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		return "", false
	}
	return e.value, true
}

func (c *memoryCache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, expiration: time.Now().Add(ttl)}
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *memoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
		}
	}
}
