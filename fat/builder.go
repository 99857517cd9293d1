package fat

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"
)

// Builder populates a freshly formatted volume with directories and
// files. It keeps the allocation table in memory and writes it back on
// Close; directory and data clusters are written through immediately.
//
// The builder is the host-side half of the pipeline and is not safe for
// concurrent use.
type Builder struct {
	rw       ReadWriterAt
	geo      geometry
	fat      []uint32
	nextFree uint32
}

// NewBuilder attaches to a formatted volume and loads its allocation
// table.
func NewBuilder(rw ReadWriterAt) (*Builder, error) {
	sec := make([]byte, sectorSize)
	if _, err := rw.ReadAt(sec, 0); err != nil {
		return nil, fmt.Errorf("read boot sector: %w", err)
	}

	geo, err := parseBootSector(sec)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, int(geo.sectorsPerFAT)*sectorSize)
	if _, err := rw.ReadAt(raw, int64(geo.reservedSectors)*sectorSize); err != nil {
		return nil, fmt.Errorf("read allocation table: %w", err)
	}

	// parseBootSector accepts foreign volumes too; their declared FAT
	// may be too small to index the data area they claim.
	entries := uint64(len(raw) / 4)
	if uint64(geo.maxCluster())+1 > entries {
		return nil, fmt.Errorf("%w: FAT of %d sectors cannot index %d clusters",
			ErrMount, geo.sectorsPerFAT, geo.clusterCount())
	}

	fat := make([]uint32, geo.maxCluster()+1)
	for i := range fat {
		fat[i] = binary.LittleEndian.Uint32(raw[i*4:]) & entryMask
	}

	return &Builder{rw: rw, geo: geo, fat: fat, nextFree: geo.rootCluster + 1}, nil
}

// Mkdir creates a directory at an absolute path. The parent must already
// exist. Creating a directory that already exists is a no-op; a name
// collision with a file is an error.
func (b *Builder) Mkdir(path string) error {
	comps := splitPath(path)
	if len(comps) == 0 {
		return nil // the root always exists
	}

	name, err := shortName(comps[len(comps)-1])
	if err != nil {
		return fmt.Errorf("%w: %q", err, path)
	}

	parent, err := b.lookupDir(comps[:len(comps)-1])
	if err != nil {
		return fmt.Errorf("%w: %q", ErrParentNotFound, path)
	}

	if existing, found, err := b.findEntry(parent, name); err != nil {
		return err
	} else if found {
		if existing.isDir() {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotDirectory, path)
	}

	self, err := b.alloc()
	if err != nil {
		return err
	}

	// ".." points at 0 when the parent is the root directory.
	dotParent := parent
	if dotParent == b.geo.rootCluster {
		dotParent = 0
	}
	if err := b.writeCluster(self, dotEntries(self, dotParent)); err != nil {
		return err
	}

	return b.addEntry(parent, dirEntry{name: name, attr: attrDirectory, firstCluster: self})
}

// WriteFile creates a file at an absolute path with the given content,
// allocating as many clusters as the content needs. The parent directory
// must exist and the name must be free.
func (b *Builder) WriteFile(path string, content []byte) error {
	comps := splitPath(path)
	if len(comps) == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, path)
	}

	name, err := shortName(comps[len(comps)-1])
	if err != nil {
		return fmt.Errorf("%w: %q", err, path)
	}

	parent, err := b.lookupDir(comps[:len(comps)-1])
	if err != nil {
		return fmt.Errorf("%w: %q", ErrParentNotFound, path)
	}

	if _, found, err := b.findEntry(parent, name); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: %q", ErrExists, path)
	}

	first, err := b.writeContent(content)
	if err != nil {
		return err
	}

	return b.addEntry(parent, dirEntry{
		name:         name,
		attr:         attrArchive,
		firstCluster: first,
		size:         uint32(len(content)),
	})
}

// FreeClusters reports how many clusters remain unallocated.
func (b *Builder) FreeClusters() uint32 {
	var free uint32
	for c := uint32(2); c <= b.geo.maxCluster(); c++ {
		if b.fat[c] == entryFree {
			free++
		}
	}
	return free
}

// Close writes the in-memory allocation table back to every FAT copy and
// refreshes the FSInfo free-space hints. The underlying image stays open;
// closing it is the caller's job.
func (b *Builder) Close() error {
	raw := make([]byte, int(b.geo.sectorsPerFAT)*sectorSize)
	for i, v := range b.fat {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}

	var errs error
	for n := 0; n < int(b.geo.numFATs); n++ {
		off := int64(b.geo.reservedSectors)*sectorSize + int64(n)*int64(b.geo.sectorsPerFAT)*sectorSize
		if _, err := b.rw.WriteAt(raw, off); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flush FAT copy %d: %w", n, err))
		}
	}

	info := buildFSInfo(b.FreeClusters(), b.nextFree)
	if _, err := b.rw.WriteAt(info, int64(b.geo.fsInfoSector)*sectorSize); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("flush FSInfo: %w", err))
	}
	if _, err := b.rw.WriteAt(info, int64(b.geo.backupBootSector+b.geo.fsInfoSector)*sectorSize); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("flush backup FSInfo: %w", err))
	}

	return errs
}

// alloc claims the next free cluster and terminates it.
func (b *Builder) alloc() (uint32, error) {
	max := b.geo.maxCluster()
	c := b.nextFree
	for scanned := uint32(0); scanned <= max; scanned++ {
		if c > max || c < 2 {
			c = 2
		}
		if b.fat[c] == entryFree {
			b.fat[c] = entryEOC
			b.nextFree = c + 1
			return c, nil
		}
		c++
	}
	return 0, ErrNoSpace
}

// writeContent stores content in a fresh cluster chain and returns its
// first cluster, or 0 for empty content (an empty file owns no clusters).
func (b *Builder) writeContent(content []byte) (uint32, error) {
	if len(content) == 0 {
		return 0, nil
	}

	step := int(b.geo.clusterBytes())
	var first, tail uint32

	for off := 0; off < len(content); off += step {
		c, err := b.alloc()
		if err != nil {
			return 0, err
		}
		if first == 0 {
			first = c
		} else {
			b.fat[tail] = c
		}
		tail = c

		end := off + step
		if end > len(content) {
			end = len(content)
		}
		if err := b.writeCluster(c, content[off:end]); err != nil {
			return 0, err
		}
	}

	return first, nil
}

// lookupDir resolves a directory path (given as components) to its first
// cluster.
func (b *Builder) lookupDir(comps []string) (uint32, error) {
	cluster := b.geo.rootCluster

	for _, comp := range comps {
		name, err := shortName(comp)
		if err != nil {
			return 0, err
		}
		e, found, err := b.findEntry(cluster, name)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrNotFound, comp)
		}
		if !e.isDir() {
			return 0, fmt.Errorf("%w: %q", ErrNotDirectory, comp)
		}
		cluster = e.firstCluster
	}

	return cluster, nil
}

// findEntry scans a directory's cluster chain for an 8.3 name.
func (b *Builder) findEntry(dirCluster uint32, name [11]byte) (dirEntry, bool, error) {
	for c := dirCluster; ; {
		data, err := b.readCluster(c)
		if err != nil {
			return dirEntry{}, false, err
		}

		for off := 0; off < len(data); off += dirEntrySize {
			slot := data[off : off+dirEntrySize]
			if slot[0] == entryTerminator {
				return dirEntry{}, false, nil
			}
			if !usableEntry(slot) {
				continue
			}
			e := decodeDirEntry(slot)
			if e.name == name {
				return e, true, nil
			}
		}

		next := b.fat[c]
		if isEOC(next) {
			return dirEntry{}, false, nil
		}
		if next == entryFree || next == entryBad || next > b.geo.maxCluster() {
			return dirEntry{}, false, fmt.Errorf("%w: cluster %d -> %#x", ErrCorruptChain, c, next)
		}
		c = next
	}
}

// addEntry writes a directory record into the first free slot of the
// directory's chain, growing the chain by one cluster when every slot is
// taken.
func (b *Builder) addEntry(dirCluster uint32, e dirEntry) error {
	c := dirCluster
	for {
		data, err := b.readCluster(c)
		if err != nil {
			return err
		}

		for off := 0; off < len(data); off += dirEntrySize {
			first := data[off]
			if first == entryTerminator || first == entryDeleted {
				pos := int64(b.geo.sectorOfCluster(c))*sectorSize + int64(off)
				if _, err := b.rw.WriteAt(e.encode(), pos); err != nil {
					return fmt.Errorf("write directory entry: %w", err)
				}
				return nil
			}
		}

		next := b.fat[c]
		if isEOC(next) {
			grown, err := b.alloc()
			if err != nil {
				return err
			}
			if err := b.writeCluster(grown, nil); err != nil {
				return err
			}
			b.fat[c] = grown
			c = grown
			continue
		}
		if next == entryFree || next == entryBad || next > b.geo.maxCluster() {
			return fmt.Errorf("%w: cluster %d -> %#x", ErrCorruptChain, c, next)
		}
		c = next
	}
}

func (b *Builder) readCluster(c uint32) ([]byte, error) {
	data := make([]byte, b.geo.clusterBytes())
	if _, err := b.rw.ReadAt(data, int64(b.geo.sectorOfCluster(c))*sectorSize); err != nil {
		return nil, fmt.Errorf("read cluster %d: %w", c, err)
	}
	return data, nil
}

// writeCluster stores data at cluster c, zero-padded to the cluster size.
func (b *Builder) writeCluster(c uint32, data []byte) error {
	buf := make([]byte, b.geo.clusterBytes())
	copy(buf, data)
	if _, err := b.rw.WriteAt(buf, int64(b.geo.sectorOfCluster(c))*sectorSize); err != nil {
		return fmt.Errorf("write cluster %d: %w", c, err)
	}
	return nil
}
