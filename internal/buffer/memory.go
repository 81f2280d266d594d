package buffer

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// memoryBuffer is a fully materialized, caller-owned or file-owned byte
// slice. Used for MEMORY, FD, and FromBytes sources.
type memoryBuffer struct {
	data   []byte
	closed atomic.Bool
}

// NewMemory wraps an already-read byte slice. The slice becomes owned by
// the returned Buffer and must not be mutated afterward.
func NewMemory(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return nil, mmdberrors.NewInvalidDatabaseError("error opening database: file is empty")
	}
	return &memoryBuffer{data: data}, nil
}

// ReadFile reads the entire contents of f into memory.
func ReadFile(f *os.File, size int) (Buffer, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return NewMemory(data)
}

func (b *memoryBuffer) Slice(offset, length uint) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	end := offset + length
	if end < offset || end > uint(len(b.data)) {
		return nil, mmdberrors.NewOffsetError()
	}
	return b.data[offset:end], nil
}

func (b *memoryBuffer) Len() uint {
	return uint(len(b.data))
}

func (b *memoryBuffer) Close() error {
	b.closed.Store(true)
	b.data = nil
	return nil
}
