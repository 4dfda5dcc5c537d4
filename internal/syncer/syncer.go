// Package syncer implements the stale-while-revalidate controller that
// keeps the public-site aggregate payload fresh. Cache hits are served
// immediately; freshness is verified in the background and subscribers are
// notified only when the change-detection hash differs.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/construo/construo-server/internal/cache"
	"github.com/construo/construo-server/internal/gateway"
	"github.com/construo/construo-server/internal/models"
)

const (
	// DefaultCooldown is the minimum interval between automatic background
	// revalidations. It bounds network activity to at most one refresh per
	// cooldown window regardless of how often LoadAll is invoked.
	DefaultCooldown = 3 * time.Minute

	// DefaultRevalidateDelay is the pause before a background revalidation
	// starts fetching. Stale data must finish painting before any
	// fresh-data comparison begins.
	DefaultRevalidateDelay = 500 * time.Millisecond

	// revalidateTimeout bounds one background revalidation run.
	revalidateTimeout = time.Minute
)

// Cache keys, one per collection plus the shared aggregate bookkeeping keys.
const (
	keySiteConfig = "siteConfig"
	keyEvents     = "events"
	keyTimeline   = "timeline"
	keySpeakers   = "speakers"
	keySponsors   = "sponsors"
	keyOrganizers = "organizers"
)

// Controller owns the cache/store references and runs the synchronization
// state machine. Construct it with New and inject it where needed; it holds
// no global state.
type Controller struct {
	cache *cache.Store
	store gateway.Store
	log   *slog.Logger

	cooldown        time.Duration
	revalidateDelay time.Duration
	now             func() time.Time

	mu        sync.Mutex
	subs      map[int]func(*models.Aggregate)
	nextSubID int

	// revalidating keeps at most one background revalidation in flight.
	revalidating atomic.Bool

	// forceCold makes the next LoadAll take the blocking-fetch path. Set
	// when the cached site configuration disables local caching.
	forceCold atomic.Bool

	staleSweep sync.Once
}

// Option configures the controller.
type Option func(*Controller)

// WithCooldown overrides the revalidation cooldown interval.
func WithCooldown(d time.Duration) Option {
	return func(c *Controller) { c.cooldown = d }
}

// WithRevalidateDelay overrides the pre-revalidation delay.
func WithRevalidateDelay(d time.Duration) Option {
	return func(c *Controller) { c.revalidateDelay = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New creates a controller with injected dependencies.
func New(store gateway.Store, cacheStore *cache.Store, opts ...Option) *Controller {
	c := &Controller{
		cache:           cacheStore,
		store:           store,
		log:             slog.Default(),
		cooldown:        DefaultCooldown,
		revalidateDelay: DefaultRevalidateDelay,
		now:             time.Now,
		subs:            map[int]func(*models.Aggregate){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn to receive fresh aggregate payloads whenever a
// revalidation or forced refresh detects a change. The returned function
// removes the subscription.
func (c *Controller) Subscribe(fn func(*models.Aggregate)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) notify(a *models.Aggregate) {
	c.mu.Lock()
	fns := make([]func(*models.Aggregate), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(a)
	}
}

// LoadAll returns the aggregate payload. With a populated cache it resolves
// from cached data alone, scheduling a background revalidation only when the
// cooldown interval has elapsed. Without one it blocks on a full fetch.
// It fails only when the store is unreachable and no cached site
// configuration exists.
func (c *Controller) LoadAll(ctx context.Context) (*models.Aggregate, error) {
	c.staleSweep.Do(func() {
		if err := c.cache.ClearStaleVersions(); err != nil {
			c.log.Warn("stale cache version sweep failed", "error", err)
		}
	})

	if c.forceCold.CompareAndSwap(true, false) {
		return c.fetchBlocking(ctx)
	}

	var cfg models.SiteConfig
	if err := c.cache.Read(keySiteConfig, &cfg); err != nil {
		c.log.Info("cache miss, fetching all collections")
		return c.fetchBlocking(ctx)
	}

	agg := c.readCachedAggregate(&cfg)

	if cfg.CachingDisabled() {
		// This call still serves what was cached; the cleared store makes
		// the next call take the cold path.
		c.log.Info("local caching disabled by site configuration, clearing store")
		if err := c.cache.ClearAll(); err != nil {
			c.log.Warn("cache clear failed", "error", err)
		}
		c.forceCold.Store(true)
		return agg, nil
	}

	var lastFetch int64
	if err := c.cache.Read(cache.KeyLastFetch, &lastFetch); err == nil {
		elapsed := c.now().UnixMilli() - lastFetch
		if elapsed > c.cooldown.Milliseconds() && c.revalidating.CompareAndSwap(false, true) {
			go c.backgroundRevalidate(agg)
		}
	}

	return agg, nil
}

// RefreshAll bypasses the cache entirely: it clears the store, performs a
// blocking fetch, persists the result and notifies subscribers. Used by the
// reserved query-parameter cache bust and the sync command.
func (c *Controller) RefreshAll(ctx context.Context) (*models.Aggregate, error) {
	if err := c.cache.ClearAll(); err != nil {
		c.log.Warn("cache clear before forced refresh failed", "error", err)
	}
	agg, err := c.fetchBlocking(ctx)
	if err != nil {
		return nil, err
	}
	c.notify(agg)
	return agg, nil
}

// readCachedAggregate assembles the aggregate from cached entries. Missing
// collections degrade to empty slices, never nil.
func (c *Controller) readCachedAggregate(cfg *models.SiteConfig) *models.Aggregate {
	agg := &models.Aggregate{SiteConfig: cfg}
	_ = c.cache.Read(keyEvents, &agg.Events)
	_ = c.cache.Read(keyTimeline, &agg.Timeline)
	_ = c.cache.Read(keySpeakers, &agg.Speakers)
	_ = c.cache.Read(keySponsors, &agg.Sponsors)
	_ = c.cache.Read(keyOrganizers, &agg.Organizers)
	agg.Normalize()
	return agg
}

// fetchBlocking fetches the five sibling collections in parallel, then the
// site configuration last so its freshness gate is evaluated against
// complete sibling data. Collection failures are isolated: each falls back
// to its cached value or an empty slice.
func (c *Controller) fetchBlocking(ctx context.Context) (*models.Aggregate, error) {
	agg := c.fetchCollections(ctx)

	cfg, err := c.store.SiteConfig(ctx)
	if err != nil {
		var cached models.SiteConfig
		if cerr := c.cache.Read(keySiteConfig, &cached); cerr != nil {
			return nil, fmt.Errorf("syncer: site configuration unavailable and not cached: %w", err)
		}
		c.log.Warn("site configuration fetch failed, using cached copy", "error", err)
		cfg = &cached
	}
	agg.SiteConfig = cfg

	c.persist(agg)
	return agg, nil
}

// fetchCollections fetches the five sibling collections in parallel with
// per-collection cache fallback. It never fails.
func (c *Controller) fetchCollections(ctx context.Context) *models.Aggregate {
	agg := &models.Aggregate{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agg.Events = fetchOrCached(c, gctx, keyEvents, c.store.Events)
		return nil
	})
	g.Go(func() error {
		agg.Timeline = fetchOrCached(c, gctx, keyTimeline, c.store.Timeline)
		return nil
	})
	g.Go(func() error {
		agg.Speakers = fetchOrCached(c, gctx, keySpeakers, c.store.Speakers)
		return nil
	})
	g.Go(func() error {
		agg.Sponsors = fetchOrCached(c, gctx, keySponsors, c.store.Sponsors)
		return nil
	})
	g.Go(func() error {
		agg.Organizers = fetchOrCached(c, gctx, keyOrganizers, c.store.Organizers)
		return nil
	})
	_ = g.Wait()
	agg.Normalize()
	return agg
}

// fetchOrCached runs one collection fetch, falling back to the cached value
// (or an empty slice) on failure so one collection can never abort the rest.
func fetchOrCached[T any](c *Controller, ctx context.Context, key string, fetch func(context.Context) ([]T, error)) []T {
	rows, err := fetch(ctx)
	if err == nil {
		return rows
	}
	c.log.Warn("collection fetch failed, falling back to cache", "collection", key, "error", err)
	var cached []T
	if cerr := c.cache.Read(key, &cached); cerr == nil {
		return cached
	}
	return []T{}
}

// persist overwrites every cache entry plus the shared lastFetch and
// dataHash keys. Write failures are logged and ignored; caching is
// best-effort.
func (c *Controller) persist(agg *models.Aggregate) {
	entries := []struct {
		key   string
		value any
	}{
		{keySiteConfig, agg.SiteConfig},
		{keyEvents, agg.Events},
		{keyTimeline, agg.Timeline},
		{keySpeakers, agg.Speakers},
		{keySponsors, agg.Sponsors},
		{keyOrganizers, agg.Organizers},
		{cache.KeyLastFetch, c.now().UnixMilli()},
		{cache.KeyDataHash, changeHash(agg)},
	}
	for _, e := range entries {
		if err := c.cache.Save(e.key, e.value); err != nil {
			c.log.Warn("cache write failed", "key", e.key, "error", err)
		}
	}
}

// backgroundRevalidate fetches everything fresh, compares the change hash
// against the stored one and, only on a difference, persists the fresh
// payload and notifies subscribers. Every failure on this path is swallowed:
// background refresh must never affect foreground state.
func (c *Controller) backgroundRevalidate(prev *models.Aggregate) {
	defer c.revalidating.Store(false)

	// Let the cache-hit render complete before any network activity.
	time.Sleep(c.revalidateDelay)

	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	fresh := c.fetchCollections(ctx)
	cfg, err := c.store.SiteConfig(ctx)
	if err != nil {
		c.log.Warn("background revalidation could not fetch site configuration", "error", err)
		cfg = prev.SiteConfig
	}
	if cfg == nil {
		return
	}
	fresh.SiteConfig = cfg

	freshHash := changeHash(fresh)
	var storedHash string
	_ = c.cache.Read(cache.KeyDataHash, &storedHash)
	if storedHash == freshHash {
		c.log.Debug("background revalidation found no changes")
		return
	}

	c.log.Info("background revalidation detected changes", "hash", freshHash)
	c.persist(fresh)
	c.notify(fresh)
}
