package decoder

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// pooledInterner is a bounded, per-decode-exclusive LRU keyed by the
// (offset) a string was read from. Built on hashicorp/golang-lru, which
// already does the bookkeeping the teacher's own hand-rolled, fixed-size
// StringCache array did by hand.
type pooledInterner struct {
	cache *lru.Cache[uint, string]
	opts  CacheOptions
}

func (c *pooledInterner) InternAt(offset, size uint, data []byte) string {
	if !c.opts.shouldCache(size) {
		return string(data[offset : offset+size])
	}
	if s, ok := c.cache.Get(offset); ok && uint(len(s)) == size {
		return s
	}
	s := string(data[offset : offset+size])
	c.cache.Add(offset, s)
	return s
}

type pooledCacheProvider struct {
	pool sync.Pool
}

// NewPooledCacheProvider returns a CacheProvider that hands out a fresh,
// exclusive bounded cache per decode from a sync.Pool, avoiding lock
// contention between concurrent Lookup calls at the cost of weaker hit
// rates than a single shared cache.
func NewPooledCacheProvider(opts CacheOptions) CacheProvider {
	return &pooledCacheProvider{
		pool: sync.Pool{
			New: func() any {
				c, err := lru.New[uint, string](max(opts.EntryCount, 1))
				if err != nil {
					// Only returns an error for a non-positive size, which
					// max() above already rules out.
					panic(err)
				}
				return &pooledInterner{cache: c, opts: opts}
			},
		},
	}
}

func (p *pooledCacheProvider) Acquire() StringInterner {
	return p.pool.Get().(*pooledInterner)
}

func (p *pooledCacheProvider) Release(i StringInterner) {
	if pi, ok := i.(*pooledInterner); ok {
		pi.cache.Purge()
		p.pool.Put(pi)
	}
}
