package disk

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
)

// Image is a block device backed by a raw image file. Reads and writes go
// straight to the file, block-aligned; the file length is fixed at
// allocation time and never grows.
type Image struct {
	f    *os.File
	size int64
	ro   bool
}

// Allocate creates or truncates the image file at path to exactly sizeBytes
// and returns it opened for read/write. Re-running on an existing path
// discards its previous content.
func Allocate(path string, sizeBytes int64) (*Image, error) {
	if sizeBytes <= 0 || sizeBytes%BlockSize != 0 {
		return nil, fmt.Errorf("%w: size %d is not a positive multiple of %d", ErrAllocate, sizeBytes, BlockSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocate, err)
	}

	if err := f.Truncate(sizeBytes); err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: %v", ErrAllocate, err), f.Close())
	}

	return &Image{f: f, size: sizeBytes}, nil
}

// Open attaches an existing image file as a read-only block device.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}

	if info.Size()%BlockSize != 0 {
		return nil, multierr.Append(
			fmt.Errorf("image %s: size %d is not block-aligned", path, info.Size()),
			f.Close(),
		)
	}

	return &Image{f: f, size: info.Size(), ro: true}, nil
}

func (i *Image) ReadBlock(index uint64) ([]byte, error) {
	if index >= i.BlockCount() {
		return nil, rangeErr(index, i.BlockCount())
	}

	buf := make([]byte, BlockSize)
	if _, err := i.f.ReadAt(buf, int64(index)*BlockSize); err != nil {
		return nil, err
	}

	return buf, nil
}

func (i *Image) BlockCount() uint64 {
	return uint64(i.size) / BlockSize
}

func (i *Image) BlockSize() uint32 {
	return BlockSize
}

// Size returns the image length in bytes.
func (i *Image) Size() int64 {
	return i.size
}

// ReadAt implements io.ReaderAt over the raw image.
func (i *Image) ReadAt(p []byte, off int64) (int, error) {
	return i.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt over the raw image. Writes past the fixed
// image length are rejected so the size invariant holds.
func (i *Image) WriteAt(p []byte, off int64) (int, error) {
	if i.ro {
		return 0, fmt.Errorf("image is attached read-only")
	}
	if off < 0 || off+int64(len(p)) > i.size {
		return 0, fmt.Errorf("image write [%d, %d) outside fixed size %d", off, off+int64(len(p)), i.size)
	}
	return i.f.WriteAt(p, off)
}

// Close flushes and closes the backing file.
func (i *Image) Close() error {
	if i.ro {
		return i.f.Close()
	}
	return multierr.Append(i.f.Sync(), i.f.Close())
}
