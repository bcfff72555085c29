package service

import (
	"context"
	"sync"
	"time"
)

// CacheService provides in-memory caching with TTL and invalidation support.
type CacheService struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// NewCacheService creates a new cache service.
func NewCacheService() *CacheService {
	cs := &CacheService{
		cache: make(map[string]*cacheEntry),
	}

	// Start background cleanup goroutine
	go cs.cleanup()

	return cs
}

// Get retrieves a value from cache.
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.cache[key]
	if !exists {
		return nil, false
	}

	// Check if expired
	if time.Now().After(entry.expiresAt) {
		// Don't delete here, let cleanup handle it
		return nil, false
	}

	return entry.data, true
}

// Set stores a value in cache with TTL.
func (cs *CacheService) Set(key string, value interface{}, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &cacheEntry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a key from cache.
func (cs *CacheService) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.cache, key)
}

// InvalidateByPrefix removes all keys with the given prefix.
func (cs *CacheService) InvalidateByPrefix(prefix string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(cs.cache, key)
		}
	}
}

// cleanup removes expired entries periodically.
func (cs *CacheService) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cs.mu.Lock()
		now := time.Now()
		for key, entry := range cs.cache {
			if now.After(entry.expiresAt) {
				delete(cs.cache, key)
			}
		}
		cs.mu.Unlock()
	}
}

// PayoutReportCacheKey builds the cache key for a payout report request.
func PayoutReportCacheKey(period string, from, to time.Time, sortBy, sortOrder string) string {
	return "payout_report:" + period +
		":" + from.Format(time.RFC3339) +
		":" + to.Format(time.RFC3339) +
		":" + sortBy + ":" + sortOrder
}

// MemoryReportCache adapts CacheService to the ReportCache interface.
type MemoryReportCache struct {
	cache *CacheService
}

func NewMemoryReportCache(cache *CacheService) *MemoryReportCache {
	return &MemoryReportCache{cache: cache}
}

func (m *MemoryReportCache) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := value.([]byte)
	return data, ok
}

func (m *MemoryReportCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) {
	m.cache.Set(key, data, ttl)
}

func (m *MemoryReportCache) InvalidateByPrefix(_ context.Context, prefix string) {
	m.cache.InvalidateByPrefix(prefix)
}
