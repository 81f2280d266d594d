package buffer

import (
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"

	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// mmapBuffer memory-maps an open file read-only. Reuses edsrzf/mmap-go
// rather than hand-rolling the per-OS syscalls the teacher's own
// mmap_windows.go did, so the same portable dependency covers both
// platforms from one call site.
type mmapBuffer struct {
	data   mmap.MMap
	closed atomic.Bool
}

// NewMmap maps f read-only and takes ownership of the mapping; f itself may
// be closed by the caller immediately after this returns.
func NewMmap(f *os.File) (Buffer, error) {
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		_ = data.Unmap()
		return nil, mmdberrors.NewInvalidDatabaseError("error opening database: file is empty")
	}
	return &mmapBuffer{data: data}, nil
}

func (b *mmapBuffer) Slice(offset, length uint) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	end := offset + length
	if end < offset || end > uint(len(b.data)) {
		return nil, mmdberrors.NewOffsetError()
	}
	return b.data[offset:end], nil
}

func (b *mmapBuffer) Len() uint {
	return uint(len(b.data))
}

func (b *mmapBuffer) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.data.Unmap()
}
