// Package rediscache provides a Redis-backed CacheProvider for
// github.com/geoipcore/mmdbquery, letting multiple Reader processes on
// different hosts share one interned-string cache instead of each holding
// its own. This is opt-in: a Reader opened without mmdbquery.WithCacheProvider
// never imports or dials Redis.
package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geoipcore/mmdbquery"
)

// Options configures the Redis-backed cache.
type Options struct {
	// Client is the go-redis client to use. Required.
	Client *redis.Client
	// KeyPrefix namespaces this cache's keys, so multiple databases can
	// share one Redis instance without colliding.
	KeyPrefix string
	// TTL is how long an interned string lives in Redis before it must be
	// re-fetched from the MMDB buffer. Zero means no expiry.
	TTL time.Duration
	// Timeout bounds each Redis round trip; on timeout or any other Redis
	// error, InternAt falls back to decoding the string directly rather
	// than failing the lookup.
	Timeout time.Duration
	// MinCachedLen and MaxCachedLen bound which string lengths are worth a
	// network round trip at all.
	MinCachedLen uint
	MaxCachedLen uint
}

func (o Options) shouldCache(size uint) bool {
	min := o.MinCachedLen
	if min == 0 {
		min = 2
	}
	max := o.MaxCachedLen
	if max == 0 {
		max = 256
	}
	return size >= min && size <= max
}

type interner struct {
	opts Options
}

// InternAt satisfies mmdbquery.StringInterner: it checks Redis for a
// previously cached copy of the string at offset before decoding it fresh
// from data. A Redis miss or error is never fatal to the lookup — it just
// means this call pays the local allocation and, on a hit-less path,
// writes the value back for the next caller.
func (c *interner) InternAt(offset, size uint, data []byte) string {
	raw := string(data[offset : offset+size])
	if !c.opts.shouldCache(size) {
		return raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	key := c.key(offset, size)
	if cached, err := c.opts.Client.Get(ctx, key).Result(); err == nil && len(cached) == int(size) {
		return cached
	}

	_ = c.opts.Client.Set(ctx, key, raw, c.opts.TTL).Err()
	return raw
}

func (c *interner) timeout() time.Duration {
	if c.opts.Timeout > 0 {
		return c.opts.Timeout
	}
	return 50 * time.Millisecond
}

func (c *interner) key(offset, size uint) string {
	return c.opts.KeyPrefix + strconv.FormatUint(uint64(offset), 36) + ":" + strconv.FormatUint(uint64(size), 36)
}

type provider struct {
	interner *interner
}

// NewCacheProvider returns a mmdbquery.CacheProvider backed by Redis. Every
// Acquire returns the same shared interner; there is nothing per-decode to
// pool since the actual cache lives in Redis, not in process memory.
func NewCacheProvider(opts Options) mmdbquery.CacheProvider {
	return &provider{interner: &interner{opts: opts}}
}

func (p *provider) Acquire() mmdbquery.StringInterner { return p.interner }
func (p *provider) Release(mmdbquery.StringInterner)  {}
