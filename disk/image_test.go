package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocate_SizeInvariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	img, err := Allocate(path, 1024*BlockSize)
	require.NoError(t, err)
	require.NoError(t, img.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(1024*BlockSize), info.Size())
}

func TestAllocate_RejectsBadSizes(t *testing.T) {
	tests := []struct {
		name string
		size int64
	}{
		{"zero", 0},
		{"negative", -BlockSize},
		{"unaligned", BlockSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Allocate(filepath.Join(t.TempDir(), "disk.img"), tt.size)
			require.ErrorIs(t, err, ErrAllocate)
		})
	}
}

func TestAllocate_TruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 4*BlockSize), 0644))

	img, err := Allocate(path, 2*BlockSize)
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, uint64(2), img.BlockCount())

	// Previous content must be gone.
	b, err := img.ReadBlock(0)
	require.NoError(t, err)
	require.Equal(t, make([]byte, BlockSize), b)
}

func TestImage_ReadBlockRoundTrip(t *testing.T) {
	img, err := Allocate(filepath.Join(t.TempDir(), "disk.img"), 8*BlockSize)
	require.NoError(t, err)
	defer img.Close()

	want := make([]byte, BlockSize)
	for i := range want {
		want[i] = byte(i)
	}

	_, err = img.WriteAt(want, 3*BlockSize)
	require.NoError(t, err)

	got, err := img.ReadBlock(3)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestImage_ReadBlockOutOfRange(t *testing.T) {
	img, err := Allocate(filepath.Join(t.TempDir(), "disk.img"), 8*BlockSize)
	require.NoError(t, err)
	defer img.Close()

	_, err = img.ReadBlock(8)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestImage_WriteAtRespectsFixedSize(t *testing.T) {
	img, err := Allocate(filepath.Join(t.TempDir(), "disk.img"), 2*BlockSize)
	require.NoError(t, err)
	defer img.Close()

	_, err = img.WriteAt(make([]byte, BlockSize), 2*BlockSize)
	require.Error(t, err)
}

func TestOpen_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	img, err := Allocate(path, 2*BlockSize)
	require.NoError(t, err)
	require.NoError(t, img.Close())

	ro, err := Open(path)
	require.NoError(t, err)
	defer ro.Close()

	require.Equal(t, uint64(2), ro.BlockCount())
	require.Equal(t, uint32(BlockSize), ro.BlockSize())

	_, err = ro.WriteAt(make([]byte, 1), 0)
	require.Error(t, err)
}
