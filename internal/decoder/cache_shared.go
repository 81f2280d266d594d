package decoder

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// sharedInterner is one lock-free concurrent cache shared by every Lookup
// across every goroutine using a Reader. xsync's MapOf uses sharded,
// lock-free reads, which matters here because the concurrency model (spec
// §5) forbids taking an internal lock on the get path outside FILE mode;
// a sync.Map or mutex-guarded map would reintroduce exactly that lock.
type sharedInterner struct {
	m    *xsync.MapOf[uint, string]
	opts CacheOptions
}

func (c *sharedInterner) InternAt(offset, size uint, data []byte) string {
	if !c.opts.shouldCache(size) {
		return string(data[offset : offset+size])
	}
	if s, ok := c.m.Load(offset); ok && uint(len(s)) == size {
		return s
	}
	s := string(data[offset : offset+size])
	c.m.Store(offset, s)
	return s
}

type sharedCacheProvider struct {
	interner *sharedInterner
}

// NewSharedCacheProvider returns a CacheProvider backed by a single
// lock-free concurrent map shared across all decode operations on a
// Reader, trading per-goroutine isolation for a much higher hit rate than
// NewPooledCacheProvider on read-heavy workloads.
func NewSharedCacheProvider(opts CacheOptions) CacheProvider {
	return &sharedCacheProvider{
		interner: &sharedInterner{m: xsync.NewMapOf[uint, string](), opts: opts},
	}
}

func (p *sharedCacheProvider) Acquire() StringInterner { return p.interner }
func (p *sharedCacheProvider) Release(StringInterner)  {}
