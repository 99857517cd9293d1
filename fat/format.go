package fat

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FormatOptions control volume identity. Every field has a deterministic
// default so that formatting the same size twice produces byte-identical
// volumes.
type FormatOptions struct {
	VolumeLabel string
	OEMName     string
	VolumeID    uint32
}

func (o FormatOptions) withDefaults() FormatOptions {
	if o.VolumeLabel == "" {
		o.VolumeLabel = "FATLOAD"
	}
	if o.OEMName == "" {
		o.OEMName = "FATLOAD"
	}
	if o.VolumeID == 0 {
		o.VolumeID = 0x1A4D2026
	}
	return o
}

// ReadWriterAt is what the write path needs from an image: block-aligned
// random access reads and writes. *disk.Image satisfies it.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Format lays down a fresh FAT32 volume over the first sizeBytes of rw:
// boot sector plus backup, FSInfo, both FAT copies with the reserved
// head entries, and a zeroed root directory cluster. The volume mounts
// without repair; previous content within the formatted region is
// destroyed.
func Format(rw ReadWriterAt, sizeBytes int64, opts FormatOptions) error {
	g, err := computeGeometry(sizeBytes)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()

	boot := buildBootSector(g, opts)
	if _, err := rw.WriteAt(boot, 0); err != nil {
		return fmt.Errorf("write boot sector: %w", err)
	}
	if _, err := rw.WriteAt(boot, int64(g.backupBootSector)*sectorSize); err != nil {
		return fmt.Errorf("write backup boot sector: %w", err)
	}

	// Free count excludes the root directory cluster allocated below.
	info := buildFSInfo(g.clusterCount()-1, g.rootCluster+1)
	if _, err := rw.WriteAt(info, int64(g.fsInfoSector)*sectorSize); err != nil {
		return fmt.Errorf("write FSInfo: %w", err)
	}
	if _, err := rw.WriteAt(info, int64(g.backupBootSector+g.fsInfoSector)*sectorSize); err != nil {
		return fmt.Errorf("write backup FSInfo: %w", err)
	}

	fatBytes := make([]byte, int(g.sectorsPerFAT)*sectorSize)
	// Reserved entries 0 and 1, then the root directory chain terminator.
	binary.LittleEndian.PutUint32(fatBytes[0:], 0x0FFFFF00|0xF8)
	binary.LittleEndian.PutUint32(fatBytes[4:], entryEOC)
	binary.LittleEndian.PutUint32(fatBytes[g.rootCluster*4:], entryEOC)

	for n := 0; n < int(g.numFATs); n++ {
		off := int64(g.reservedSectors)*sectorSize + int64(n)*int64(g.sectorsPerFAT)*sectorSize
		if _, err := rw.WriteAt(fatBytes, off); err != nil {
			return fmt.Errorf("write FAT copy %d: %w", n, err)
		}
	}

	root := make([]byte, g.clusterBytes())
	if _, err := rw.WriteAt(root, int64(g.sectorOfCluster(g.rootCluster))*sectorSize); err != nil {
		return fmt.Errorf("write root directory: %w", err)
	}

	return nil
}

func buildBootSector(g geometry, opts FormatOptions) []byte {
	sec := make([]byte, sectorSize)

	sec[0], sec[1], sec[2] = 0xEB, 0x58, 0x90
	copy(sec[3:11], pad(opts.OEMName, 8))
	binary.LittleEndian.PutUint16(sec[11:], g.bytesPerSector)
	sec[13] = g.sectorsPerCluster
	binary.LittleEndian.PutUint16(sec[14:], g.reservedSectors)
	sec[16] = g.numFATs
	// Root entry count and 16-bit totals stay zero on FAT32.
	sec[21] = 0xF8
	binary.LittleEndian.PutUint16(sec[24:], 63)
	binary.LittleEndian.PutUint16(sec[26:], 255)
	binary.LittleEndian.PutUint32(sec[32:], g.totalSectors)
	binary.LittleEndian.PutUint32(sec[36:], g.sectorsPerFAT)
	binary.LittleEndian.PutUint32(sec[44:], g.rootCluster)
	binary.LittleEndian.PutUint16(sec[48:], g.fsInfoSector)
	binary.LittleEndian.PutUint16(sec[50:], g.backupBootSector)
	sec[64] = 0x80
	sec[66] = 0x29
	binary.LittleEndian.PutUint32(sec[67:], opts.VolumeID)
	copy(sec[71:82], pad(opts.VolumeLabel, 11))
	copy(sec[82:90], []byte("FAT32   "))
	sec[510], sec[511] = 0x55, 0xAA

	return sec
}

func buildFSInfo(freeClusters, nextFree uint32) []byte {
	sec := make([]byte, sectorSize)
	binary.LittleEndian.PutUint32(sec[0:], 0x41615252)
	binary.LittleEndian.PutUint32(sec[484:], 0x61417272)
	binary.LittleEndian.PutUint32(sec[488:], freeClusters)
	binary.LittleEndian.PutUint32(sec[492:], nextFree)
	binary.LittleEndian.PutUint32(sec[508:], 0xAA550000)
	return sec
}

func pad(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}
