package resources

import (
	"context"
	"time"

	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

const (
	queryCachePrefix = "resources:q:"
	generationKey    = "resources:generation"
	DefaultCacheTTL  = 5 * time.Minute
)

// QueryCache keeps list results per filter until a resource changes.
// Entries are keyed by a generation that every invalidation bumps, so a
// result computed before a change can never be served after it.
type QueryCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewQueryCache returns a cache that is a no-op when c is nil
func NewQueryCache(c cache.Cache, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QueryCache{cache: c, ttl: ttl}
}

// Generation is read before running a query and passed to Get and Set
func (q *QueryCache) Generation(ctx context.Context) string {
	if q.cache == nil {
		return ""
	}
	gen, err := q.cache.Get(ctx, generationKey)
	if err != nil || gen == "" {
		return "0"
	}
	return gen
}

func (q *QueryCache) key(gen string, f Filter) string {
	return queryCachePrefix + gen + ":" + f.CacheKey()
}

func (q *QueryCache) Get(ctx context.Context, gen string, f Filter) ([]Item, bool) {
	if q.cache == nil {
		return nil, false
	}
	var items []Item
	if err := q.cache.GetJSON(ctx, q.key(gen, f), &items); err != nil {
		return nil, false
	}
	return items, true
}

// Set stores items computed under gen, unless a change has bumped it since
func (q *QueryCache) Set(ctx context.Context, gen string, f Filter, items []Item) {
	if q.cache == nil {
		return
	}
	if q.Generation(ctx) != gen {
		return
	}
	if err := q.cache.SetJSON(ctx, q.key(gen, f), items, q.ttl); err != nil {
		logger.Warn().Err(err).Msg("failed to cache resource query")
	}
}

// Invalidate bumps the generation and drops every cached list
func (q *QueryCache) Invalidate(ctx context.Context) {
	if q.cache == nil {
		return
	}
	if _, err := q.cache.Increment(ctx, generationKey); err != nil {
		logger.Warn().Err(err).Msg("failed to bump resource query generation")
	}
	if err := q.cache.DeletePrefix(ctx, queryCachePrefix); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate resource queries")
	}
}

// Watch invalidates on every resources change seen by the hub, including
// writes made by other instances or directly in SQL. It returns when ctx ends.
func (q *QueryCache) Watch(ctx context.Context, hub *realtime.Hub) {
	sub := hub.Subscribe(realtime.ForTables(Table), 64)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			q.Invalidate(context.Background())
		}
	}
}
