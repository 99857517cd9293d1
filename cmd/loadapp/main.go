// Command loadapp attaches a disk image as a block device, mounts the
// FAT32 volume on it, loads /sbin/origin.bin and has a worker verify the
// content before reporting success. Each failing phase maps to its own
// exit status; the transcript on stdout only ever ends in the success
// line when every phase passed.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fatload/fatload/disk"
	"github.com/fatload/fatload/fat"
	"github.com/fatload/fatload/loader"
	"github.com/fatload/fatload/log"
)

// Exit statuses per failing phase.
const (
	exitMount     = 2
	exitNotFound  = 3
	exitTruncated = 4
	exitWorker    = 5
)

type args struct {
	image   string
	verbose bool
}

func main() {
	a := args{}

	cmd := &cobra.Command{
		Use:           "loadapp",
		Short:         "load and verify the app from a FAT32 disk image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(a)
		},
	}

	cmd.Flags().StringVar(&a.image, "disk", "disk.img", "disk image path")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "log runtime phases")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "loadapp: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(a args) error {
	var l *zap.SugaredLogger
	if a.verbose {
		l = log.Verbose().Sugar()
	} else {
		l = log.Quiet().Sugar()
	}

	img, err := disk.Open(a.image)
	if err != nil {
		return err
	}
	defer img.Close()

	return loader.New(img, os.Stdout, l).Run()
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, fat.ErrMount):
		return exitMount
	case errors.Is(err, fat.ErrNotFound):
		return exitNotFound
	case errors.Is(err, loader.ErrTruncatedRead):
		return exitTruncated
	case errors.Is(err, loader.ErrWorkerFailed):
		return exitWorker
	default:
		return 1
	}
}
