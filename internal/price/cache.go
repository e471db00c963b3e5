package price

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL     = 2 * time.Minute
	DefaultBackoff = 5 * time.Minute

	fallbackTimeout = 8 * time.Second
	historyTimeout  = 15 * time.Second
)

// Cache fronts a primary Fetcher with a TTL and a last-known-good quote.
//
// Order of preference: a fresh cached quote, a new primary quote, the stale cached
// quote, the fallback fetcher, and finally a zero quote marked unavailable.
// Current never returns an error.
type Cache struct {
	primary  Fetcher
	fallback Fetcher
	history  HistoryFetcher

	ttl     time.Duration
	backoff time.Duration
	now     func() time.Time
	logger  *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	last   *Quote
	expiry time.Time
}

type CacheOption func(*Cache)

func WithFallback(f Fetcher) CacheOption {
	return func(c *Cache) { c.fallback = f }
}

func WithHistory(h HistoryFetcher) CacheOption {
	return func(c *Cache) { c.history = h }
}

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithBackoff sets how long a stale quote is served after the primary rate limits us.
func WithBackoff(d time.Duration) CacheOption {
	return func(c *Cache) { c.backoff = d }
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

func NewCache(primary Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		primary: primary,
		ttl:     DefaultTTL,
		backoff: DefaultBackoff,
		now:     time.Now,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Current returns the best quote available right now. Concurrent callers that miss
// the cache share a single refresh, and the lock is never held across a fetch.
func (c *Cache) Current(ctx context.Context) Quote {
	if q, ok := c.fresh(c.now()); ok {
		return q
	}

	// A caller that gives up must not fail the refresh for the others waiting on it.
	v, _, _ := c.group.Do("current", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx)), nil
	})

	return v.(Quote)
}

func (c *Cache) fresh(now time.Time) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && now.Before(c.expiry) {
		return *c.last, true
	}

	return Quote{}, false
}

func (c *Cache) refresh(ctx context.Context) Quote {
	now := c.now()

	if q, ok := c.fresh(now); ok {
		return q
	}

	q, err := c.primary.Fetch(ctx)
	if err == nil {
		return c.store(q, now)
	}

	if stale, ok := c.serveStale(err, now); ok {
		return stale
	}

	c.logger.Warn("price fetch failed with nothing cached", "error", err)

	if c.fallback != nil {
		fctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
		defer cancel()

		q, ferr := c.fallback.Fetch(fctx)
		if ferr == nil {
			return c.store(q, now)
		}

		c.logger.Warn("fallback price fetch failed", "error", ferr)
	}

	return Quote{Timestamp: now, Source: SourceUnavailable}
}

// serveStale pushes the expiry out after a failed fetch and returns the last quote.
func (c *Cache) serveStale(err error, now time.Time) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return Quote{}, false
	}

	wait := c.ttl
	if errors.Is(err, ErrRateLimited) {
		wait = c.backoff
	}

	c.expiry = now.Add(wait)
	c.logger.Warn("price fetch failed, serving cached quote", "error", err, "retry_in", wait)

	stale := *c.last
	stale.Source = SourceCache

	return stale, true
}

func (c *Cache) store(q Quote, now time.Time) Quote {
	c.mu.Lock()
	defer c.mu.Unlock()

	q.Timestamp = now
	c.last = &q
	c.expiry = now.Add(c.ttl)

	return q
}

// History returns up to days of price history. Failures are logged and yield an empty slice.
func (c *Cache) History(ctx context.Context, days int) []Point {
	if c.history == nil {
		return []Point{}
	}

	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	points, err := c.history.History(ctx, days)
	if err != nil {
		c.logger.Warn("failed to fetch price history", "days", days, "error", err)
		return []Point{}
	}

	return points
}
