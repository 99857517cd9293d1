package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in           string
		want         int64
		errAssertion require.ErrorAssertionFunc
	}{
		{"64m", 64 * 1024 * 1024, require.NoError},
		{"512k", 512 * 1024, require.NoError},
		{"1g", 1 << 30, require.NoError},
		{"4096b", 4096, require.NoError},
		{"4096", 4096, require.NoError},
		{" 64M ", 64 * 1024 * 1024, require.NoError},
		{"", 0, require.Error},
		{"abc", 0, require.Error},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSize(tt.in)
			tt.errAssertion(t, err)
			if tt.want != 0 {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSynthesize_ProducesExactSize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "disk.img")

	a := args{out: out, size: "64m"}
	require.NoError(t, synthesize(a, zap.NewNop().Sugar()))

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Equal(t, int64(64*1024*1024), info.Size())
}

func TestSynthesize_RejectsTinyImages(t *testing.T) {
	a := args{out: filepath.Join(t.TempDir(), "disk.img"), size: "16m"}
	require.Error(t, synthesize(a, zap.NewNop().Sugar()))
}
