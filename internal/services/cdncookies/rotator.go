package cdncookies

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/internal/services/cache"
	"github.com/castworks/processor-api/pkg/config"
)

// Rotator periodically refreshes the signed-cookie cache for every
// known package prefix. It runs independently of pipeline jobs and is
// safe to run concurrently with itself: each prefix's refresh is
// idempotent.
type Rotator struct {
	repo   audio.Repository
	signer Signer
	store  cache.Store
	cfg    config.CDNConfig

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRotator creates a rotator over the given cookie cache.
func NewRotator(repo audio.Repository, signer Signer, store cache.Store, cfg config.CDNConfig) *Rotator {
	return &Rotator{
		repo:   repo,
		signer: signer,
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start launches the rotation loop. An immediate first pass warms the
// cache before the ticker takes over.
func (r *Rotator) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.RotateOnce(ctx); err != nil {
			log.Printf("[ERROR] Cookie rotation: %v", err)
		}

		ticker := time.NewTicker(r.cfg.RotateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				if err := r.RotateOnce(ctx); err != nil {
					log.Printf("[ERROR] Cookie rotation: %v", err)
				}
			}
		}
	}()
}

// Stop terminates the rotation loop.
func (r *Rotator) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// RotateOnce refreshes every package prefix whose cached cookie set is
// absent or expires within the safety margin. A minting failure for one
// prefix is logged and does not block the rest of the batch.
func (r *Rotator) RotateOnce(ctx context.Context) error {
	packages, err := r.repo.ListPackages(ctx)
	if err != nil {
		return fmt.Errorf("listing packages: %w", err)
	}

	now := time.Now()
	refreshed := 0
	for _, pkg := range packages {
		if pkg.Prefix == "" {
			continue
		}

		if entry, ok := r.store.Get(ctx, pkg.Prefix); ok {
			if entry.ExpiresAt.After(now.Add(r.cfg.RefreshMargin)) {
				continue
			}
		}

		if err := r.refresh(ctx, pkg.Prefix, now); err != nil {
			log.Printf("[ERROR] Refreshing cookies for %s: %v", pkg.Prefix, err)
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		log.Printf("[INFO] Refreshed signed cookies for %d of %d package prefixes", refreshed, len(packages))
	}

	return nil
}

// refresh mints a cookie set and caches it for the TTL minus the safety
// margin, floored to a minimum positive lifetime.
func (r *Rotator) refresh(ctx context.Context, prefix string, now time.Time) error {
	expires := now.Add(r.cfg.CookieTTL)

	cookies, err := r.signer.Sign(prefix, expires)
	if err != nil {
		return err
	}

	cacheTTL := r.cfg.CookieTTL - r.cfg.RefreshMargin
	if cacheTTL <= 0 {
		cacheTTL = time.Second
	}

	entry := &cache.CookieEntry{Cookies: cookies, ExpiresAt: expires}
	return r.store.Set(ctx, prefix, entry, cacheTTL)
}

// Cookies returns the cached cookie set for prefix, minting one on
// demand when the cache has no usable entry. Request paths use this,
// but in steady state the rotator has already filled the cache.
func (r *Rotator) Cookies(ctx context.Context, prefix string) (map[string]string, error) {
	if entry, ok := r.store.Get(ctx, prefix); ok {
		return entry.Cookies, nil
	}

	if err := r.refresh(ctx, prefix, time.Now()); err != nil {
		return nil, err
	}

	entry, ok := r.store.Get(ctx, prefix)
	if !ok {
		return nil, fmt.Errorf("cookie entry for %s missing after refresh", prefix)
	}
	return entry.Cookies, nil
}
