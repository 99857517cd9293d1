package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatload/fatload/fat"
	"github.com/fatload/fatload/loader"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"mount failure", fmt.Errorf("mount: %w", fat.ErrMount), exitMount},
		{"missing file", fmt.Errorf("load: %w", fat.ErrNotFound), exitNotFound},
		{"truncated read", loader.ErrTruncatedRead, exitTruncated},
		{"worker rejection", loader.ErrWorkerFailed, exitWorker},
		{"anything else", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRun_MissingImage(t *testing.T) {
	require.Error(t, run(args{image: "/nonexistent/disk.img"}))
}
