// Package fat implements just enough of the FAT32 on-disk format to
// synthesize a bootable demo image on the host and to mount and read it
// back through a block device, without shelling out to external
// formatting utilities.
//
// The write path (Format, Builder) runs at build time against the raw
// image file; the read path (Mount, Fs) runs against the disk.Device
// attachment contract and never writes.
package fat

import (
	"errors"
	"strings"
)

const (
	sectorSize   = 512
	dirEntrySize = 32

	// FAT32 entry values, masked to 28 bits.
	entryMask = 0x0FFFFFFF
	entryFree = 0x00000000
	entryBad  = 0x0FFFFFF7
	entryEOC  = 0x0FFFFFFF

	attrReadOnly  = 0x01
	attrHidden    = 0x02
	attrSystem    = 0x04
	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20

	// The FAT32 specification requires at least this many clusters;
	// fewer and drivers will treat the volume as FAT16.
	minClusters = 65525
)

var (
	ErrVolumeTooSmall = errors.New("fat: volume too small for FAT32")
	ErrMount          = errors.New("fat: not a mountable FAT32 volume")
	ErrNotFound       = errors.New("fat: no such file or directory")
	ErrParentNotFound = errors.New("fat: parent directory does not exist")
	ErrNotDirectory   = errors.New("fat: path component is not a directory")
	ErrIsDirectory    = errors.New("fat: is a directory")
	ErrExists         = errors.New("fat: entry already exists")
	ErrNoSpace        = errors.New("fat: no free clusters")
	ErrInvalidName    = errors.New("fat: name does not fit 8.3 format")
	ErrCorruptChain   = errors.New("fat: corrupt cluster chain")
)

// isEOC reports whether a FAT entry terminates a cluster chain.
func isEOC(v uint32) bool {
	return v >= 0x0FFFFFF8
}

// splitPath breaks an absolute slash-separated path into components.
func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

// shortName converts a path component into the padded 11-byte 8.3 form
// used by directory entries, e.g. "origin.bin" -> "ORIGIN  BIN".
func shortName(name string) ([11]byte, error) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}

	base, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
	}

	if base == "" || len(base) > 8 || len(ext) > 3 {
		return out, ErrInvalidName
	}

	put := func(dst []byte, s string) error {
		for i := 0; i < len(s); i++ {
			c := s[i]
			switch {
			case c >= 'a' && c <= 'z':
				c -= 'a' - 'A'
			case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			case c == '_' || c == '-' || c == '~':
			default:
				return ErrInvalidName
			}
			dst[i] = c
		}
		return nil
	}

	if err := put(out[0:8], base); err != nil {
		return out, err
	}
	if err := put(out[8:11], ext); err != nil {
		return out, err
	}
	return out, nil
}

// displayName is the inverse of shortName, used when matching path
// components against directory entries.
func displayName(raw [11]byte) string {
	base := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}
