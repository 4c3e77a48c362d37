package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultTTL = 30 * time.Minute

// MemoryStore is an in-process Store with background expiry sweeps.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*memoryItem
	stats  Stats
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type memoryItem struct {
	entry  *CookieEntry
	expiry time.Time
}

// NewMemoryStore creates a MemoryStore and starts its cleanup goroutine.
// Call Stop when done to release it.
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		items:  make(map[string]*memoryItem),
		stopCh: make(chan struct{}),
	}

	ms.wg.Add(1)
	go ms.cleanupExpired()

	return ms
}

// Get retrieves the entry for key, treating expired entries as absent.
func (ms *MemoryStore) Get(ctx context.Context, key string) (*CookieEntry, bool) {
	ms.mu.RLock()
	item, exists := ms.items[key]
	ms.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&ms.stats.Misses, 1)
		return nil, false
	}

	if time.Now().After(item.expiry) {
		_ = ms.Delete(ctx, key)
		atomic.AddInt64(&ms.stats.Misses, 1)
		return nil, false
	}

	atomic.AddInt64(&ms.stats.Hits, 1)
	return item.entry, true
}

// Set stores entry under key for ttl.
func (ms *MemoryStore) Set(ctx context.Context, key string, entry *CookieEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	ms.mu.Lock()
	ms.items[key] = &memoryItem{
		entry:  entry,
		expiry: time.Now().Add(ttl),
	}
	ms.mu.Unlock()

	atomic.AddInt64(&ms.stats.Sets, 1)
	return nil
}

// Delete removes the entry for key.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	if _, exists := ms.items[key]; exists {
		delete(ms.items, key)
		atomic.AddInt64(&ms.stats.Deletes, 1)
	}
	ms.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (ms *MemoryStore) Clear(ctx context.Context) error {
	ms.mu.Lock()
	ms.items = make(map[string]*memoryItem)
	ms.mu.Unlock()
	return nil
}

// Stats returns usage counters.
func (ms *MemoryStore) Stats() Stats {
	stats := Stats{
		Hits:      atomic.LoadInt64(&ms.stats.Hits),
		Misses:    atomic.LoadInt64(&ms.stats.Misses),
		Sets:      atomic.LoadInt64(&ms.stats.Sets),
		Deletes:   atomic.LoadInt64(&ms.stats.Deletes),
		Evictions: atomic.LoadInt64(&ms.stats.Evictions),
	}
	ms.mu.RLock()
	stats.Entries = int64(len(ms.items))
	ms.mu.RUnlock()
	return stats
}

// Stop terminates the cleanup goroutine.
func (ms *MemoryStore) Stop() {
	close(ms.stopCh)
	ms.wg.Wait()
}

func (ms *MemoryStore) cleanupExpired() {
	defer ms.wg.Done()
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeExpired()
		case <-ms.stopCh:
			return
		}
	}
}

func (ms *MemoryStore) removeExpired() {
	now := time.Now()
	ms.mu.Lock()
	for key, item := range ms.items {
		if now.After(item.expiry) {
			delete(ms.items, key)
			atomic.AddInt64(&ms.stats.Evictions, 1)
		}
	}
	ms.mu.Unlock()
}
