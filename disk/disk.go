// Package disk exposes raw storage as fixed-size, randomly addressable
// blocks. The runtime mounts a filesystem on top of a Device; the image
// synthesizer writes through the same file-backed implementation.
package disk

import (
	"errors"
	"fmt"
)

// BlockSize is the sector size every device in this repository uses.
const BlockSize = 512

var (
	// ErrAllocate wraps OS-level failures while creating or sizing an image.
	ErrAllocate = errors.New("disk: cannot allocate image")

	// ErrOutOfRange is returned for reads past the end of the device.
	ErrOutOfRange = errors.New("disk: block index out of range")
)

// Device is the attachment contract between an image and a filesystem.
type Device interface {
	// ReadBlock returns the content of block index as a slice of
	// BlockSize() bytes, owned by the caller.
	ReadBlock(index uint64) ([]byte, error)
	BlockCount() uint64
	BlockSize() uint32
}

func rangeErr(index, count uint64) error {
	return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, index, count)
}
