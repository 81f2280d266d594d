package buffer

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// fileBuffer keeps the source file open and issues a fresh read for every
// Slice call rather than materializing the file in memory. Per the
// concurrency model, FILE is the one backend that takes a lock around each
// read: os.File.ReadAt is safe for concurrent use on most platforms, but
// the spec's discipline is explicit (mutex in FILE mode, no mutex
// elsewhere), so this follows it rather than relying on OS-level pread
// atomicity.
type fileBuffer struct {
	f      *os.File
	size   uint
	mu     sync.Mutex
	closed atomic.Bool
}

// NewFile keeps f open and reads from it on demand.
func NewFile(f *os.File, size int64) (Buffer, error) {
	if size == 0 {
		return nil, mmdberrors.NewInvalidDatabaseError("error opening database: file is empty")
	}
	return &fileBuffer{f: f, size: uint(size)}, nil
}

func (b *fileBuffer) Slice(offset, length uint) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	end := offset + length
	if end < offset || end > b.size {
		return nil, mmdberrors.NewOffsetError()
	}
	out := make([]byte, length)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if _, err := b.f.ReadAt(out, int64(offset)); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *fileBuffer) Len() uint {
	return b.size
}

func (b *fileBuffer) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}
