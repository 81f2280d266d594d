package mmdbquery

import "github.com/geoipcore/mmdbquery/internal/decoder"

// CacheOptions configures the built-in CacheProvider implementations: how
// many distinct strings to retain, and the length range worth interning
// (very short strings rarely repeat enough to pay for the lookup, and very
// long ones are rarely identical byte-for-byte across records).
type CacheOptions = decoder.CacheOptions

// DefaultCacheOptions returns the defaults tuned for typical MMDB record
// shapes, where short fields like ISO country codes repeat across millions
// of entries.
func DefaultCacheOptions() CacheOptions { return decoder.DefaultCacheOptions() }

// CacheProvider supplies the string-interning cache a Reader uses while
// decoding records. Pass one to Open/FromBytes/FromFD via WithCacheProvider,
// or use one of the constructors below.
type CacheProvider = decoder.CacheProvider

// StringInterner returns a canonical copy of the string at offset/size
// within data. Implement this to back a custom CacheProvider, such as
// rediscache.NewCacheProvider.
type StringInterner = decoder.StringInterner

// NewNoCacheProvider disables interning; every decoded string allocates
// fresh. This is the default when no cache option is given.
func NewNoCacheProvider() CacheProvider { return decoder.NewNoCacheProvider() }

// NewPooledCacheProvider returns a CacheProvider that hands each decode an
// exclusive, bounded cache drawn from a sync.Pool, trading weaker hit
// rates for zero lock contention between concurrent lookups.
func NewPooledCacheProvider(opts CacheOptions) CacheProvider {
	return decoder.NewPooledCacheProvider(opts)
}

// NewSharedCacheProvider returns a CacheProvider backed by a single
// lock-free map shared across every lookup on a Reader, trading per-call
// isolation for a much higher hit rate on read-heavy workloads.
func NewSharedCacheProvider(opts CacheOptions) CacheProvider {
	return decoder.NewSharedCacheProvider(opts)
}
