package fat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fatload/fatload/disk"
)

// Fs is a mounted FAT32 volume. It is an explicit handle rather than
// process-wide state so independent mounts can coexist, and it only ever
// reads from the underlying device.
type Fs struct {
	dev disk.Device
	geo geometry
}

// Mount interprets the device as a FAT32 volume. It fails with ErrMount
// on anything that does not carry a consistent FAT32 boot sector.
func Mount(dev disk.Device) (*Fs, error) {
	if dev.BlockSize() != sectorSize {
		return nil, fmt.Errorf("%w: device block size %d", ErrMount, dev.BlockSize())
	}

	sec, err := dev.ReadBlock(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMount, err)
	}

	geo, err := parseBootSector(sec)
	if err != nil {
		return nil, err
	}

	if uint64(geo.totalSectors) > dev.BlockCount() {
		return nil, fmt.Errorf("%w: volume claims %d sectors, device has %d", ErrMount, geo.totalSectors, dev.BlockCount())
	}

	if fatEntries := uint64(geo.sectorsPerFAT) * (sectorSize / 4); uint64(geo.maxCluster())+1 > fatEntries {
		return nil, fmt.Errorf("%w: FAT of %d sectors cannot index %d clusters", ErrMount, geo.sectorsPerFAT, geo.clusterCount())
	}

	return &Fs{dev: dev, geo: geo}, nil
}

// Open resolves an absolute path to a readable file.
func (fs *Fs) Open(path string) (*File, error) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrIsDirectory, path)
	}

	cluster := fs.geo.rootCluster
	for i, comp := range comps {
		e, err := fs.findEntry(cluster, comp)
		if err != nil {
			return nil, err
		}

		last := i == len(comps)-1
		if !last {
			if !e.isDir() {
				return nil, fmt.Errorf("%w: %q", ErrNotDirectory, comp)
			}
			cluster = e.firstCluster
			continue
		}

		if e.isDir() {
			return nil, fmt.Errorf("%w: %q", ErrIsDirectory, path)
		}

		chain, err := fs.chain(e.firstCluster)
		if err != nil {
			return nil, err
		}
		return &File{fs: fs, chain: chain, size: int64(e.size)}, nil
	}

	panic("unreachable")
}

func (fs *Fs) findEntry(dirCluster uint32, comp string) (dirEntry, error) {
	name, err := shortName(comp)
	if err != nil {
		return dirEntry{}, err
	}

	chain, err := fs.chain(dirCluster)
	if err != nil {
		return dirEntry{}, err
	}

	for _, c := range chain {
		data, err := fs.readCluster(c)
		if err != nil {
			return dirEntry{}, err
		}

		for off := 0; off < len(data); off += dirEntrySize {
			slot := data[off : off+dirEntrySize]
			if slot[0] == entryTerminator {
				return dirEntry{}, fmt.Errorf("%w: %q", ErrNotFound, comp)
			}
			if !usableEntry(slot) {
				continue
			}
			if e := decodeDirEntry(slot); e.name == name {
				return e, nil
			}
		}
	}

	return dirEntry{}, fmt.Errorf("%w: %q", ErrNotFound, comp)
}

// chain follows the allocation table from start to end-of-chain. A start
// of 0 (empty file) yields an empty chain.
func (fs *Fs) chain(start uint32) ([]uint32, error) {
	if start == 0 {
		return nil, nil
	}

	var out []uint32
	seen := make(map[uint32]struct{})

	for c := start; ; {
		if c < 2 || c > fs.geo.maxCluster() {
			return nil, fmt.Errorf("%w: cluster %d out of range", ErrCorruptChain, c)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: cycle at cluster %d", ErrCorruptChain, c)
		}
		seen[c] = struct{}{}
		out = append(out, c)

		next, err := fs.fatEntry(c)
		if err != nil {
			return nil, err
		}
		if isEOC(next) {
			return out, nil
		}
		if next == entryFree || next == entryBad {
			return nil, fmt.Errorf("%w: cluster %d -> %#x", ErrCorruptChain, c, next)
		}
		c = next
	}
}

func (fs *Fs) fatEntry(c uint32) (uint32, error) {
	sector := uint64(fs.geo.reservedSectors) + uint64(c*4)/sectorSize
	blk, err := fs.dev.ReadBlock(sector)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(blk[(c*4)%sectorSize:]) & entryMask, nil
}

func (fs *Fs) readCluster(c uint32) ([]byte, error) {
	out := make([]byte, 0, fs.geo.clusterBytes())
	first := uint64(fs.geo.sectorOfCluster(c))
	for s := uint64(0); s < uint64(fs.geo.sectorsPerCluster); s++ {
		blk, err := fs.dev.ReadBlock(first + s)
		if err != nil {
			return nil, err
		}
		out = append(out, blk...)
	}
	return out, nil
}

// File is an open, read-only file on a mounted volume. It implements
// io.Reader over the file's cluster chain.
type File struct {
	fs    *Fs
	chain []uint32
	size  int64
	pos   int64
}

// Size returns the file length in bytes.
func (f *File) Size() int64 {
	return f.size
}

func (f *File) Read(p []byte) (int, error) {
	if f.pos >= f.size {
		return 0, io.EOF
	}

	clusterBytes := int64(f.fs.geo.clusterBytes())
	n := 0

	for n < len(p) && f.pos < f.size {
		idx := f.pos / clusterBytes
		if idx >= int64(len(f.chain)) {
			return n, fmt.Errorf("%w: chain shorter than file size", ErrCorruptChain)
		}

		data, err := f.fs.readCluster(f.chain[idx])
		if err != nil {
			return n, err
		}

		off := f.pos % clusterBytes
		avail := clusterBytes - off
		if rem := f.size - f.pos; avail > rem {
			avail = rem
		}

		copied := copy(p[n:], data[off:off+avail])
		n += copied
		f.pos += int64(copied)
	}

	return n, nil
}
