// Package mmdbquery is a read-only query engine for the MaxMind DB (MMDB)
// binary format: it walks the on-disk binary search tree keyed on the bits
// of an IP address, resolves the terminal leaf's pointer into the
// self-describing data section, and materializes the record there as a
// typed Record. It does not write or mutate MMDB files, and it has no
// network I/O of its own — the input is always a local byte source opened
// with Open, FromBytes, or FromFD.
//
// # Basic usage
//
//	db, err := mmdbquery.Open("GeoLite2-City.mmdb")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	record, prefixLen, err := db.GetWithPrefixLen("81.2.69.142")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if record.Kind() != mmdbquery.KindExtended {
//		country := record.Map()["country"].Map()
//		fmt.Println(prefixLen, country["iso_code"].String())
//	}
//
// # Thread safety
//
// All Reader methods are safe for concurrent use. Get, GetWithPrefixLen,
// Metadata, and Networks never take an internal lock except when the
// Reader was opened in FILE mode, where each Buffer.Slice is serialized
// through a mutex (spec §5). Close is safe to call while other goroutines
// are reading; any read racing a Close either completes against bytes it
// already holds or observes ClosedDatabaseError — it never touches freed
// or unmapped memory.
package mmdbquery

import (
	"sync/atomic"

	"github.com/geoipcore/mmdbquery/internal/buffer"
	"github.com/geoipcore/mmdbquery/internal/decoder"
)

// Mode selects the access strategy used to read an MMDB source (spec §6).
type Mode int

const (
	// AUTO prefers a native-accelerated mmap if present, else MMAP, else
	// FILE.
	AUTO Mode = Mode(buffer.AUTO)
	// MMAPExt requires a native-accelerated path and fails if unavailable.
	MMAPExt Mode = Mode(buffer.MMAPExt)
	// MMAP memory-maps the file read-only.
	MMAP Mode = Mode(buffer.MMAP)
	// FILE keeps the file open and issues random reads.
	FILE Mode = Mode(buffer.FILE)
	// MEMORY reads the entire source into memory at open.
	MEMORY Mode = Mode(buffer.MEMORY)
	// FD indicates the source is an already-open file descriptor; implies
	// MEMORY.
	FD Mode = Mode(buffer.FD)
)

const ipv4StartUnset = -1

// Reader holds the state needed to query one open MMDB file. The zero
// Reader is not usable; construct one with Open, FromBytes, or FromFD.
type Reader struct {
	buf      buffer.Buffer
	Metadata Metadata
	dec      *decoder.Decoder
	dataBase uint // offset of the data section within buf
	dataLen  uint // length of the data section (dataEnd - dataBase)

	ipv4Start atomic.Int64 // packed (node<<8)|depth; ipv4StartUnset until computed

	cacheProvider decoder.CacheProvider
	metrics       *metricsSink

	closed atomic.Bool
}

// Open opens the MMDB file at path using mode (AUTO by default).
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	options := newReaderOptions(opts)
	if options.mode < AUTO || options.mode > FD {
		return nil, newInvalidArgumentError("mmdbquery: unknown open mode %d", options.mode)
	}

	buf, statErr, err := buffer.OpenFile(path, buffer.Mode(options.mode))
	if statErr != nil {
		return nil, newFileNotFoundError(path, statErr)
	}
	if err != nil {
		return nil, translateDecodeError(err)
	}

	return newReader(buf, options)
}

// FromBytes constructs a Reader directly from an in-memory MMDB image
// (MEMORY mode); the byte slice becomes owned by the Reader and must not
// be modified afterward.
func FromBytes(data []byte, opts ...ReaderOption) (*Reader, error) {
	options := newReaderOptions(opts)
	buf, err := buffer.NewMemory(data)
	if err != nil {
		return nil, translateDecodeError(err)
	}
	return newReader(buf, options)
}

// FromFD constructs a Reader by reading the entirety of an already-open
// file descriptor into memory (FD mode, which implies MEMORY per spec §6).
func FromFD(fd int, opts ...ReaderOption) (*Reader, error) {
	options := newReaderOptions(opts)
	buf, err := buffer.OpenFD(fd)
	if err != nil {
		return nil, translateDecodeError(err)
	}
	return newReader(buf, options)
}

func newReader(buf buffer.Buffer, options readerOptions) (*Reader, error) {
	full, err := buf.Slice(0, buf.Len())
	if err != nil {
		_ = buf.Close()
		return nil, translateDecodeError(err)
	}

	metadataStart, err := findMetadataStart(full)
	if err != nil {
		_ = buf.Close()
		return nil, translateDecodeError(err)
	}

	metadata, _, err := decodeMetadata(full, metadataStart)
	if err != nil {
		_ = buf.Close()
		return nil, err
	}

	dataBase := metadata.SearchTreeSize() + dataSectionSeparatorSize
	dataEnd := uint(metadataStart) - uint(len(metadataStartMarker))
	if dataBase > dataEnd || dataEnd > uint(len(full)) {
		_ = buf.Close()
		return nil, translateDecodeErrorMsg("the MaxMind DB contains invalid metadata")
	}

	dec := decoder.New(full[dataBase:dataEnd])
	cacheProvider := options.cacheProvider
	if cacheProvider == nil {
		cacheProvider = decoder.NewNoCacheProvider()
	}

	r := &Reader{
		buf:           buf,
		Metadata:      metadata,
		dec:           dec,
		dataBase:      dataBase,
		dataLen:       dataEnd - dataBase,
		cacheProvider: cacheProvider,
		metrics:       options.metrics,
	}
	r.ipv4Start.Store(ipv4StartUnset)
	return r, nil
}

// Get retrieves the record for addr, or the zero Record (Kind ==
// KindExtended) if the address has no entry in the database.
func (r *Reader) Get(addr any) (Record, error) {
	rec, _, err := r.GetWithPrefixLen(addr)
	return rec, err
}

// GetWithPrefixLen retrieves the record for addr along with the number of
// bits that were consumed while descending the tree before a terminal
// value was reached (spec §4.5). prefixLen is reported even when no record
// is found, because "unassigned" and "absent" both terminate a descent at
// a specific depth.
func (r *Reader) GetWithPrefixLen(addr any) (Record, int, error) {
	if r.closed.Load() {
		return Record{}, 0, errClosed
	}

	start := nowIfMetrics(r.metrics)

	key, err := parseAddress(addr)
	if err != nil {
		return Record{}, 0, err
	}
	if r.Metadata.IPVersion == 4 && key.bitLen == 128 {
		return Record{}, 0, newInvalidArgumentError(
			"error looking up %q: you attempted to look up an IPv6 address in an IPv4-only database",
			key.display,
		)
	}

	offset, prefixLen, err := r.lookupOffset(key)
	recordMetrics(r.metrics, start, err)
	if err != nil {
		return Record{}, prefixLen, translateDecodeError(err)
	}
	if offset == notFoundOffset {
		return Record{}, prefixLen, nil
	}

	interner := r.cacheProvider.Acquire()
	val, _, err := decoder.Decode(r.dec.WithStringInterner(interner), offset)
	r.cacheProvider.Release(interner)
	if err != nil {
		return Record{}, prefixLen, translateDecodeError(err)
	}
	return newRecord(val), prefixLen, nil
}

const notFoundOffset = ^uint(0)

func (r *Reader) lookupOffset(key addressKey) (uint, int, error) {
	startNode, startDepth, err := r.getIPv4Start(key)
	if err != nil {
		return 0, 0, err
	}

	res, err := traverseTree(r.buf, r.Metadata, key, startNode, startDepth, key.bitLen)
	if err != nil {
		return 0, 0, err
	}

	switch {
	case res.node == r.Metadata.NodeCount:
		return notFoundOffset, res.prefixLen, nil
	case res.node > r.Metadata.NodeCount:
		offset := res.node - r.Metadata.NodeCount - dataSectionSeparatorSize
		if offset >= r.dataLen {
			return 0, 0, newCorruptTreeErr()
		}
		return offset, res.prefixLen, nil
	default:
		return 0, 0, newCorruptTreeErr()
	}
}

// getIPv4Start returns the node/depth a descent should begin from for key:
// node 0 for any 128-bit key or an IPv4-only database, otherwise the
// cached IPv4 subtree root.
func (r *Reader) getIPv4Start(key addressKey) (uint, int, error) {
	if r.Metadata.IPVersion != 6 || key.bitLen == 128 {
		return 0, 0, nil
	}

	if packed := r.ipv4Start.Load(); packed != ipv4StartUnset {
		node, depth := unpackIPv4Start(packed)
		return node, depth, nil
	}

	node, depth, err := ipv4StartNode(r.buf, r.Metadata)
	if err != nil {
		return 0, 0, err
	}
	// Idempotent store: concurrent callers computing this simultaneously
	// all derive the same deterministic (node, depth) pair, so a benign
	// race here needs no lock (spec §5/§9).
	r.ipv4Start.Store(packIPv4Start(node, depth))
	return node, depth, nil
}

func packIPv4Start(node uint, depth int) int64 {
	return int64(node)<<8 | int64(depth&0xff)
}

func unpackIPv4Start(packed int64) (uint, int) {
	return uint(packed >> 8), int(packed & 0xff)
}

func newCorruptTreeErr() error {
	return translateDecodeErrorMsg("the MaxMind DB file's search tree is corrupt")
}

// Close releases the resources backing the Reader. Close is idempotent:
// calling it again after the first call is a silent no-op (spec §7/§9).
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.buf.Close()
}

// Closed reports whether Close has been called.
func (r *Reader) Closed() bool {
	return r.closed.Load()
}

