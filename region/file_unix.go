//go:build linux || darwin

package region

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a heap persisted in a file. The file is mapped shared at the full
// reservation length up front and grown with ftruncate, so the mapping never
// moves; only bytes below the break are ever touched.
type File struct {
	f        *os.File
	data     []byte
	brk      int
	pageSize int
}

// OpenFile opens (creating if needed) the heap file at path with room for
// maxHeap bytes. An existing file's length becomes the initial break.
func OpenFile(path string, maxHeap int) (*File, error) {
	n, err := checkMax(maxHeap)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size() > int64(n) {
		_ = f.Close()
		return nil, fmt.Errorf("%w: file %s holds %d bytes, reservation is %d",
			ErrTooLarge, path, st.Size(), n)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("region: mmap failed: %w", err)
	}

	return &File{
		f:        f,
		data:     data,
		brk:      int(st.Size()),
		pageSize: unix.Getpagesize(),
	}, nil
}

// Grow extends the file by n zero bytes.
func (r *File) Grow(n int) (int, error) {
	if r.f == nil {
		return 0, ErrClosed
	}
	if err := checkGrow(r.brk, n, len(r.data)); err != nil {
		return 0, err
	}
	if n == 0 {
		return r.brk, nil
	}
	if err := r.f.Truncate(int64(r.brk + n)); err != nil {
		return 0, fmt.Errorf("%w: extend file: %w", ErrExhausted, err)
	}
	old := r.brk
	r.brk += n
	return old, nil
}

// Bytes returns the mapped file contents up to the break.
func (r *File) Bytes() []byte {
	if r.data == nil {
		return nil
	}
	return r.data[:r.brk]
}

// SyncRange flushes the pages covering [off, off+n) to disk.
func (r *File) SyncRange(off, n int) error {
	if r.data == nil {
		return ErrClosed
	}
	start := off / r.pageSize * r.pageSize
	end := min(off+n, r.brk)
	if start >= end {
		return nil
	}
	return unix.Msync(r.data[start:end], unix.MS_SYNC)
}

// Sync flushes the whole heap to disk.
func (r *File) Sync() error {
	return r.SyncRange(0, r.brk)
}

// Close unmaps and closes the file.
func (r *File) Close() error {
	var err error
	if r.data != nil {
		if uerr := unix.Munmap(r.data); uerr != nil && !errors.Is(uerr, unix.EINVAL) {
			err = uerr
		}
		r.data = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}
