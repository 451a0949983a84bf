package rules

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

// DefaultCacheTTL is how long client and market lists stay fresh.
const DefaultCacheTTL = 5 * time.Minute

// CachedSource memoizes Clients and Markets of another Source for a TTL.
// Fetch always goes to the underlying source so rule edits show up on the next check.
// Thread-safe for concurrent access.
type CachedSource struct {
	inner  Source
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	clients *cacheEntry
	markets map[string]*cacheEntry
}

type cacheEntry struct {
	values   []string
	cachedAt time.Time
}

func NewCachedSource(inner Source, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		markets: map[string]*cacheEntry{},
	}
}

var _ Source = (*CachedSource)(nil)

func (c *CachedSource) Clients(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	e := c.clients
	c.mu.RUnlock()
	if vals, ok := c.fresh(e); ok {
		c.logger.Debug("rules.cache.hit", "key", "clients")
		return vals, nil
	}

	vals, err := c.inner.Clients(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.clients = &cacheEntry{values: copyStrings(vals), cachedAt: c.now()}
	c.mu.Unlock()
	return vals, nil
}

func (c *CachedSource) Markets(ctx context.Context, client string) ([]string, error) {
	key := strings.ToLower(strings.TrimSpace(client))
	c.mu.RLock()
	e := c.markets[key]
	c.mu.RUnlock()
	if vals, ok := c.fresh(e); ok {
		c.logger.Debug("rules.cache.hit", "key", "markets", "client", client)
		return vals, nil
	}

	vals, err := c.inner.Markets(ctx, client)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.markets[key] = &cacheEntry{values: copyStrings(vals), cachedAt: c.now()}
	c.mu.Unlock()
	return vals, nil
}

func (c *CachedSource) Fetch(ctx context.Context, client, market string) ([]entity.Rule, error) {
	return c.inner.Fetch(ctx, client, market)
}

// Invalidate drops everything cached.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = nil
	c.markets = map[string]*cacheEntry{}
}

// fresh returns a copy of e's values if e exists and has not expired.
func (c *CachedSource) fresh(e *cacheEntry) ([]string, bool) {
	if e == nil || c.now().Sub(e.cachedAt) > c.ttl {
		return nil, false
	}
	return copyStrings(e.values), true
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
