package fat

import (
	"encoding/binary"
	"fmt"
)

// geometry describes a FAT32 volume layout. It is either computed from a
// target size (write path) or parsed back out of sector 0 (read path);
// both paths share the same struct so the builder and the mounted
// filesystem agree on cluster addressing.
type geometry struct {
	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	numFATs           uint8
	totalSectors      uint32
	sectorsPerFAT     uint32
	rootCluster       uint32
	fsInfoSector      uint16
	backupBootSector  uint16
}

func (g geometry) firstDataSector() uint32 {
	return uint32(g.reservedSectors) + uint32(g.numFATs)*g.sectorsPerFAT
}

func (g geometry) clusterCount() uint32 {
	return (g.totalSectors - g.firstDataSector()) / uint32(g.sectorsPerCluster)
}

func (g geometry) clusterBytes() uint32 {
	return uint32(g.sectorsPerCluster) * uint32(g.bytesPerSector)
}

// sectorOfCluster maps a cluster number (2-based, per the FAT format) to
// its first sector.
func (g geometry) sectorOfCluster(c uint32) uint32 {
	return g.firstDataSector() + (c-2)*uint32(g.sectorsPerCluster)
}

// maxCluster is the highest addressable cluster number on this volume.
func (g geometry) maxCluster() uint32 {
	return g.clusterCount() + 1
}

// computeGeometry derives a self-consistent FAT32 layout for a volume of
// sizeBytes. The FAT size and cluster count depend on each other, so the
// FAT size is converged iteratively; cluster size starts at one sector
// and doubles only when the volume would otherwise exceed the FAT32
// cluster-count ceiling.
func computeGeometry(sizeBytes int64) (geometry, error) {
	g := geometry{
		bytesPerSector:    sectorSize,
		sectorsPerCluster: 1,
		reservedSectors:   32,
		numFATs:           2,
		totalSectors:      uint32(sizeBytes / sectorSize),
		rootCluster:       2,
		fsInfoSector:      1,
		backupBootSector:  6,
	}

	const maxClusters = 0x0FFFFFF4

	if sizeBytes/sectorSize > 0xFFFFFFFF {
		return g, fmt.Errorf("volume of %d bytes exceeds FAT32 addressing", sizeBytes)
	}

	for {
		// The FAT size and the cluster count depend on each other, and
		// the fixed point between them need not exist exactly (growing
		// the FAT by a sector can free that same sector from the data
		// area). Converge upward: once the FAT is big enough to index
		// every remaining cluster, stop. A slightly oversized FAT is
		// valid.
		g.sectorsPerFAT = 1
		for i := 0; i < 32; i++ {
			dataSectors := int64(g.totalSectors) - int64(g.reservedSectors) - int64(g.numFATs)*int64(g.sectorsPerFAT)
			if dataSectors <= 0 {
				return g, fmt.Errorf("%w: %d bytes", ErrVolumeTooSmall, sizeBytes)
			}
			clusters := uint32(dataSectors) / uint32(g.sectorsPerCluster)
			need := (clusters + 2) * 4
			needSectors := (need + sectorSize - 1) / sectorSize
			if needSectors <= g.sectorsPerFAT {
				break
			}
			g.sectorsPerFAT = needSectors
		}

		if g.clusterCount() <= maxClusters {
			break
		}
		if g.sectorsPerCluster >= 128 {
			return g, fmt.Errorf("volume of %d bytes exceeds FAT32 addressing", sizeBytes)
		}
		g.sectorsPerCluster *= 2
	}

	if g.clusterCount() < minClusters {
		return g, fmt.Errorf("%w: %d clusters, need %d", ErrVolumeTooSmall, g.clusterCount(), minClusters)
	}

	return g, nil
}

// parseBootSector reads geometry back out of sector 0 and validates the
// fields the demo depends on.
func parseBootSector(sec []byte) (geometry, error) {
	if len(sec) < sectorSize {
		return geometry{}, fmt.Errorf("%w: boot sector truncated", ErrMount)
	}

	if sec[510] != 0x55 || sec[511] != 0xAA {
		return geometry{}, fmt.Errorf("%w: missing boot signature", ErrMount)
	}

	if string(sec[82:90]) != "FAT32   " {
		return geometry{}, fmt.Errorf("%w: filesystem type %q", ErrMount, string(sec[82:90]))
	}

	g := geometry{
		bytesPerSector:    binary.LittleEndian.Uint16(sec[11:]),
		sectorsPerCluster: sec[13],
		reservedSectors:   binary.LittleEndian.Uint16(sec[14:]),
		numFATs:           sec[16],
		totalSectors:      binary.LittleEndian.Uint32(sec[32:]),
		sectorsPerFAT:     binary.LittleEndian.Uint32(sec[36:]),
		rootCluster:       binary.LittleEndian.Uint32(sec[44:]),
		fsInfoSector:      binary.LittleEndian.Uint16(sec[48:]),
		backupBootSector:  binary.LittleEndian.Uint16(sec[50:]),
	}

	if g.bytesPerSector != sectorSize {
		return geometry{}, fmt.Errorf("%w: sector size %d", ErrMount, g.bytesPerSector)
	}
	if g.sectorsPerCluster == 0 || g.numFATs == 0 || g.sectorsPerFAT == 0 {
		return geometry{}, fmt.Errorf("%w: inconsistent layout", ErrMount)
	}
	if g.rootCluster < 2 {
		return geometry{}, fmt.Errorf("%w: root cluster %d", ErrMount, g.rootCluster)
	}

	return g, nil
}
