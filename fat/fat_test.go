package fat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortName(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		want         string
		errAssertion require.ErrorAssertionFunc
	}{
		{"file with extension", "origin.bin", "ORIGIN  BIN", require.NoError},
		{"bare directory name", "sbin", "SBIN       ", require.NoError},
		{"already uppercase", "KERNEL.ELF", "KERNEL  ELF", require.NoError},
		{"underscores and digits", "app_2.b1", "APP_2   B1 ", require.NoError},
		{"base too long", "verylongname.bin", "", require.Error},
		{"extension too long", "a.binx", "", require.Error},
		{"empty base", ".bin", "", require.Error},
		{"illegal character", "a b.bin", "", require.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := shortName(tt.in)
			tt.errAssertion(t, err)
			if tt.want != "" {
				require.Equal(t, tt.want, string(got[:]))
			}
		})
	}
}

func TestDisplayName_InvertsShortName(t *testing.T) {
	for _, name := range []string{"ORIGIN.BIN", "SBIN", "A.B"} {
		sn, err := shortName(name)
		require.NoError(t, err)
		require.Equal(t, name, displayName(sn))
	}
}

func TestSplitPath(t *testing.T) {
	require.Nil(t, splitPath("/"))
	require.Equal(t, []string{"sbin"}, splitPath("/sbin"))
	require.Equal(t, []string{"sbin", "origin.bin"}, splitPath("/sbin/origin.bin"))
	require.Equal(t, []string{"sbin"}, splitPath("sbin/"))
}

func TestComputeGeometry_64MiB(t *testing.T) {
	g, err := computeGeometry(64 * 1024 * 1024)
	require.NoError(t, err)

	require.Equal(t, uint16(sectorSize), g.bytesPerSector)
	require.Equal(t, uint32(131072), g.totalSectors)
	require.Equal(t, uint8(2), g.numFATs)
	require.Equal(t, uint32(2), g.rootCluster)

	// The FAT must index every cluster plus the two reserved entries.
	// Exact fit is not always reachable (growing the FAT shrinks the
	// data area), so the FAT may run one sector long, never short.
	capacity := g.sectorsPerFAT * (sectorSize / 4)
	entries := g.clusterCount() + 2
	require.GreaterOrEqual(t, capacity, entries,
		"FAT of %d sectors cannot index %d clusters", g.sectorsPerFAT, g.clusterCount())

	// And the volume must clear the FAT32 minimum.
	require.GreaterOrEqual(t, g.clusterCount(), uint32(minClusters))
}

func TestComputeGeometry_FATCoversDataArea(t *testing.T) {
	// 64 MiB at one sector per cluster has no exact FAT-size fixed
	// point: 1008 FAT sectors leave too many clusters, 1009 leave too
	// few to fill them. The computed layout must still come out with
	// the FAT on the large side.
	for _, size := range []int64{64 << 20, 65 << 20, 96 << 20, 128 << 20, 200 << 20, 256 << 20, 1 << 30} {
		g, err := computeGeometry(size)
		require.NoError(t, err, "size %d", size)

		capacity := uint64(g.sectorsPerFAT) * (sectorSize / 4)
		require.GreaterOrEqual(t, capacity, uint64(g.maxCluster())+1, "size %d", size)
	}
}

func TestComputeGeometry_RejectsOversizeVolumes(t *testing.T) {
	// 3 TiB worth of 512-byte sectors does not fit the 32-bit total
	// sector field.
	_, err := computeGeometry(3 << 40)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrVolumeTooSmall)
}

func TestComputeGeometry_TooSmall(t *testing.T) {
	_, err := computeGeometry(16 * 1024 * 1024)
	require.ErrorIs(t, err, ErrVolumeTooSmall)
}

func TestComputeGeometry_LayoutIsSelfConsistent(t *testing.T) {
	for _, size := range []int64{64 << 20, 128 << 20, 256 << 20} {
		g, err := computeGeometry(size)
		require.NoError(t, err)

		used := int64(g.firstDataSector()) + int64(g.clusterCount())*int64(g.sectorsPerCluster)
		require.LessOrEqual(t, used, int64(g.totalSectors), "size %d", size)
	}
}

func TestParseBootSector_RejectsGarbage(t *testing.T) {
	sec := make([]byte, sectorSize)

	_, err := parseBootSector(sec)
	require.ErrorIs(t, err, ErrMount)

	// A boot signature alone is not enough.
	sec[510], sec[511] = 0x55, 0xAA
	_, err = parseBootSector(sec)
	require.ErrorIs(t, err, ErrMount)
}

func TestBootSector_RoundTrip(t *testing.T) {
	g, err := computeGeometry(64 * 1024 * 1024)
	require.NoError(t, err)

	sec := buildBootSector(g, FormatOptions{}.withDefaults())
	parsed, err := parseBootSector(sec)
	require.NoError(t, err)
	require.Equal(t, g, parsed)
}
