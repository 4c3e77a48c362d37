// Package cache holds minted signed-access cookies in memory between
// rotator runs. Entries are time-bounded and never persisted; a process
// restart simply forces the next rotation to mint fresh cookies.
package cache

import (
	"context"
	"time"
)

// CookieEntry is one minted cookie set for a package prefix. Cookies maps
// cookie name to value; ExpiresAt is the signed policy expiry, which is
// later than the cache entry's own TTL so a cache hit is always usable.
type CookieEntry struct {
	Cookies   map[string]string
	ExpiresAt time.Time
}

// Store is the cookie cache consumed by the rotator.
type Store interface {
	// Get returns the entry for key, or false when absent or expired.
	Get(ctx context.Context, key string) (*CookieEntry, bool)

	// Set stores an entry under key for ttl.
	Set(ctx context.Context, key string, entry *CookieEntry, ttl time.Duration) error

	// Delete removes the entry for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error
}

// Stats describes cache activity since startup.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Entries   int64
}

// StatsProvider is implemented by stores that track usage counters.
type StatsProvider interface {
	Stats() Stats
}
