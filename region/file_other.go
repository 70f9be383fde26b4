//go:build !linux && !darwin

package region

import (
	"fmt"
	"io"
	"os"
)

// File is a heap persisted in a file. Without mmap the contents live in a
// reserved byte slice that is written back on Sync and Close.
type File struct {
	f    *os.File
	data []byte
	brk  int
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
		f.Close()
		return nil, err
	}
	if st.Size() > int64(n) {
		f.Close()
		return nil, fmt.Errorf("%w: file %s holds %d bytes, reservation is %d",
			ErrTooLarge, path, st.Size(), n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(f, data[:st.Size()]); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, data: data, brk: int(st.Size())}, nil
}

// Grow moves the break up by n bytes.
func (r *File) Grow(n int) (int, error) {
	if r.f == nil {
		return 0, ErrClosed
	}
	if err := checkGrow(r.brk, n, len(r.data)); err != nil {
		return 0, err
	}
	old := r.brk
	r.brk += n
	return old, nil
}

// Bytes returns the heap up to the break.
func (r *File) Bytes() []byte { return r.data[:r.brk] }

// SyncRange writes [off, off+n) back to the file.
func (r *File) SyncRange(off, n int) error {
	if r.f == nil {
		return ErrClosed
	}
	end := min(off+n, r.brk)
	if off >= end {
		return nil
	}
	_, err := r.f.WriteAt(r.data[off:end], int64(off))
	return err
}

// Sync writes the whole heap back to the file.
func (r *File) Sync() error {
	return r.SyncRange(0, r.brk)
}

// Close writes the heap back and closes the file.
func (r *File) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.Sync()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f = nil
	return err
}
