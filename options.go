package mmdbquery

import "github.com/geoipcore/mmdbquery/internal/decoder"

// readerOptions holds the resolved configuration built by applying a
// ReaderOption slice. Unexported, mirroring the teacher's own
// options/readerOptions split: ReaderOption is the only thing callers see.
type readerOptions struct {
	mode          Mode
	cacheProvider decoder.CacheProvider
	metrics       *metricsSink
}

func newReaderOptions(opts []ReaderOption) readerOptions {
	options := readerOptions{mode: AUTO}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// ReaderOption configures Open, FromBytes, or FromFD.
type ReaderOption func(*readerOptions)

// WithMode selects the buffer access strategy (spec §6). The default is
// AUTO.
func WithMode(mode Mode) ReaderOption {
	return func(o *readerOptions) { o.mode = mode }
}

// WithCacheProvider installs a string-interning CacheProvider used while
// decoding records. Without this option, no interning happens and every
// decoded string allocates fresh.
func WithCacheProvider(p decoder.CacheProvider) ReaderOption {
	return func(o *readerOptions) { o.cacheProvider = p }
}

// WithPooledCache is a convenience for WithCacheProvider(NewPooledCacheProvider(opts)).
func WithPooledCache(opts decoder.CacheOptions) ReaderOption {
	return WithCacheProvider(decoder.NewPooledCacheProvider(opts))
}

// WithSharedCache is a convenience for WithCacheProvider(NewSharedCacheProvider(opts)).
func WithSharedCache(opts decoder.CacheOptions) ReaderOption {
	return WithCacheProvider(decoder.NewSharedCacheProvider(opts))
}

// WithMetrics enables Prometheus instrumentation of lookups and iterations,
// registered against reg. Off by default: a Reader opened without this
// option never touches the default registry.
func WithMetrics(reg prometheusRegisterer) ReaderOption {
	return func(o *readerOptions) { o.metrics = newMetricsSink(reg) }
}
