package buffer

import (
	"errors"
	"fmt"
	"os"

	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// ErrNativeUnavailable is returned for MMAPExt: this module has no
// native-accelerated path (the systems-language implementation the spec
// names as the MMAP_EXT collaborator is out of scope here).
var ErrNativeUnavailable = errors.New("mmdbquery: native-accelerated mmap path is unavailable in this build")

// OpenFile opens path under the given Mode and returns a Buffer. A failure
// of os.Open itself (a missing/unreadable path) is returned as statErr,
// separately from other open failures in err, so callers can surface
// FileNotFoundError.
func OpenFile(path string, mode Mode) (buf Buffer, statErr error, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr, nil
	}
	keepOpen := false
	defer func() {
		// MMAP and MEMORY no longer need the descriptor once mapped/read.
		// A FILE-backed buffer (whether chosen directly or as AUTO's
		// fallback) owns f for its whole lifetime, so it opts out here.
		if !keepOpen {
			_ = f.Close()
		}
	}()

	info, statE := f.Stat()
	if statE != nil {
		return nil, nil, statE
	}
	size := info.Size()
	if size == 0 {
		return nil, nil, mmdberrors.NewInvalidDatabaseError("error opening database: file %q is empty", path)
	}

	switch mode {
	case MMAPExt:
		return nil, nil, ErrNativeUnavailable
	case MMAP:
		b, mmapErr := NewMmap(f)
		if mmapErr != nil {
			return nil, nil, mmapErr
		}
		return b, nil, nil
	case FILE:
		b, fileErr := NewFile(f, size)
		if fileErr != nil {
			return nil, nil, fileErr
		}
		keepOpen = true
		return b, nil, nil
	case MEMORY, FD:
		b, memErr := ReadFile(f, int(size))
		if memErr != nil {
			return nil, nil, memErr
		}
		return b, nil, nil
	case AUTO:
		b, mmapErr := NewMmap(f)
		if mmapErr == nil {
			return b, nil, nil
		}
		if !errors.Is(mmapErr, errors.ErrUnsupported) {
			return nil, nil, mmapErr
		}
		fb, fileErr := NewFile(f, size)
		if fileErr != nil {
			return nil, nil, fileErr
		}
		keepOpen = true
		return fb, nil, nil
	default:
		return nil, nil, fmt.Errorf("mmdbquery: unknown open mode %d", mode)
	}
}

// OpenFD materializes an already-open file descriptor into memory; FD mode
// implies MEMORY per the spec's open-mode table.
func OpenFD(fd int) (Buffer, error) {
	f := os.NewFile(uintptr(fd), "mmdbquery-fd")
	if f == nil {
		return nil, fmt.Errorf("mmdbquery: invalid file descriptor %d", fd)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ReadFile(f, int(info.Size()))
}
