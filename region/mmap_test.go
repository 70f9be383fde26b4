//go:build linux || darwin

package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnon_CommitsOnGrow(t *testing.T) {
	a, err := NewAnon(1 << 20)
	require.NoError(t, err)
	defer a.Close()

	require.Empty(t, a.Bytes())

	off, err := a.Grow(100)
	require.NoError(t, err)
	require.Equal(t, 0, off)
	b := a.Bytes()
	b[99] = 0x5A

	off, err = a.Grow(10000)
	require.NoError(t, err)
	require.Equal(t, 100, off)
	a.Bytes()[10099] = 0xA5
	require.Equal(t, byte(0x5A), a.Bytes()[99])

	_, err = a.Grow(1 << 20)
	require.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, a.Close())
	_, err = a.Grow(8)
	require.ErrorIs(t, err, ErrClosed)
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.bin")

	f, err := OpenFile(path, 1<<16)
	require.NoError(t, err)
	_, err = f.Grow(4096)
	require.NoError(t, err)
	copy(f.Bytes()[100:], "persisted")
	require.NoError(t, f.SyncRange(100, 9))
	require.NoError(t, f.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(4096), st.Size())

	f, err = OpenFile(path, 1<<16)
	require.NoError(t, err)
	defer f.Close()
	require.Len(t, f.Bytes(), 4096, "existing length becomes the break")
	require.Equal(t, "persisted", string(f.Bytes()[100:109]))

	off, err := f.Grow(8)
	require.NoError(t, err)
	require.Equal(t, 4096, off)
	require.NoError(t, f.Sync())
}

func TestFile_RejectsFileLargerThanReservation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o600))

	_, err := OpenFile(path, 4096)
	require.ErrorIs(t, err, ErrTooLarge)
}
