package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/semlayer/semlayer/internal/db"
)

// QueryCache keeps query results for a fixed TTL. Concurrent misses for the
// same key share one load. Errors are never cached.
type QueryCache struct {
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	group       singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	res     *db.Result
	expires time.Time
}

func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{ttl: ttl, loadTimeout: requestTimeout, now: time.Now, entries: map[string]cacheEntry{}}
}

// CacheKey identifies a query and its arguments.
func CacheKey(query string, args ...any) string {
	var b strings.Builder
	b.WriteString(query)
	for _, a := range args {
		fmt.Fprintf(&b, "\x00%T:%v", a, a)
	}
	return b.String()
}

// Get returns the cached result for key or runs load. hit reports whether
// the result came from the cache. A zero TTL disables caching.
//
// A shared load runs detached from any one caller's context, bounded by the
// load timeout; each caller stops waiting when its own ctx is done.
func (c *QueryCache) Get(ctx context.Context, key string, load func(context.Context) (*db.Result, error)) (res *db.Result, hit bool, err error) {
	if c.ttl <= 0 {
		res, err = load(ctx)
		return res, false, err
	}

	if res, ok := c.lookup(key); ok {
		return res, true, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if res, ok := c.lookup(key); ok {
			return res, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		res, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*db.Result), false, nil
	}
}

func (c *QueryCache) lookup(key string) (*db.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.res, true
}

func (c *QueryCache) store(key string, res *db.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{res: res, expires: now.Add(c.ttl)}
}

// Len returns the number of live entries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}
