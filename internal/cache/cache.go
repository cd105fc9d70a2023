// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache stores fetched page markup keyed by URL so the crawl never downloads
// the same document twice within a run.
type Cache interface {
	// Get retrieves cached markup by key.
	Get(key string) (string, bool)

	// Set stores markup under key with the specified TTL. Existing keys are
	// updated; implementations may evict entries to stay within budget.
	Set(key string, markup string, ttl time.Duration) error

	// Delete removes an entry. Missing keys are not an error.
	Delete(key string) error

	// Clear removes all entries.
	Clear() error

	// Close stops any background maintenance goroutines.
	Close()
}

type cacheEntry struct {
	Markup    string
	ExpiresAt time.Time
	Key       string // For LRU tracking
}

// MemoryCache implements in-memory markup caching with LRU eviction.
type MemoryCache struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.RWMutex
	maxSize int64 // Maximum cache size in bytes
	size    int64 // Current size in bytes
	ctx     context.Context
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
}

// NewMemoryCache creates a new in-memory cache with LRU eviction.
func NewMemoryCache(maxSizeBytes int64) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 100 * 1024 * 1024 // Default: 100MB
	}

	ctx, cancel := context.WithCancel(context.Background())

	cache := &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		ctx:     ctx,
		cancel:  cancel,
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves cached markup, promoting the entry to most recently used.
func (mc *MemoryCache) Get(key string) (string, bool) {
	mc.mu.Lock()
	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		mc.mu.Unlock()
		return "", false
	}

	entry := element.Value.(*cacheEntry)

	if time.Now().After(entry.ExpiresAt) {
		mc.misses++
		mc.mu.Unlock()
		go mc.Delete(key)
		return "", false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++
	mc.mu.Unlock()

	log.Debug().Str("key", key).Msg("Cache hit")
	return entry.Markup, true
}

// Set stores markup under key with TTL.
func (mc *MemoryCache) Set(key string, markup string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	size := int64(len(markup)) + 256 // Struct and map overhead

	if element, exists := mc.store[key]; exists {
		oldEntry := element.Value.(*cacheEntry)
		mc.size -= int64(len(oldEntry.Markup))

		element.Value = &cacheEntry{
			Markup:    markup,
			ExpiresAt: time.Now().Add(ttl),
			Key:       key,
		}
		mc.lruList.MoveToFront(element)
		mc.size += size
		return nil
	}

	for mc.size+size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	entry := &cacheEntry{
		Markup:    markup,
		ExpiresAt: time.Now().Add(ttl),
		Key:       key,
	}

	element := mc.lruList.PushFront(entry)
	mc.store[key] = element
	mc.size += size

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int64("size_bytes", size).
		Msg("Cached markup")

	return nil
}

// Delete removes an entry.
func (mc *MemoryCache) Delete(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		entry := element.Value.(*cacheEntry)
		mc.lruList.Remove(element)
		delete(mc.store, key)
		mc.size -= int64(len(entry.Markup))
	}

	return nil
}

// Clear removes all entries.
func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store = make(map[string]*list.Element)
	mc.lruList = list.New()
	mc.size = 0
	mc.hits = 0
	mc.misses = 0

	return nil
}

// Close stops the background cleanup goroutine.
func (mc *MemoryCache) Close() {
	mc.cancel()
}

// evictLRU removes the least recently used entry. Caller holds the lock.
func (mc *MemoryCache) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}

	entry := element.Value.(*cacheEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
	mc.size -= int64(len(entry.Markup))

	log.Debug().Str("key", entry.Key).Msg("Evicted from cache (LRU)")
}

// cleanupExpired periodically removes expired entries.
func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			var next *list.Element
			for element := mc.lruList.Front(); element != nil; element = next {
				next = element.Next()
				entry := element.Value.(*cacheEntry)
				if now.After(entry.ExpiresAt) {
					mc.lruList.Remove(element)
					delete(mc.store, entry.Key)
					mc.size -= int64(len(entry.Markup))
				}
			}
			mc.mu.Unlock()
		case <-mc.ctx.Done():
			return
		}
	}
}

// Stats returns cache statistics including hit rate.
func (mc *MemoryCache) Stats() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	hitRate := 0.0
	total := mc.hits + mc.misses
	if total > 0 {
		hitRate = float64(mc.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"entries":    mc.lruList.Len(),
		"size_bytes": mc.size,
		"max_size":   mc.maxSize,
		"hits":       mc.hits,
		"misses":     mc.misses,
		"hit_rate":   hitRate,
	}
}

// Key builds a cache key from a URL and the wait selector that shaped the fetch.
func Key(url, waitSelector string) string {
	if waitSelector != "" {
		return fmt.Sprintf("%s::%s", url, waitSelector)
	}
	return url
}
