// Command mkimage synthesizes the demo disk image: a fixed-size raw file
// holding a FAT32 volume with /sbin/origin.bin inside. Rebuilding with
// the same flags produces a byte-identical image.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fatload/fatload/disk"
	"github.com/fatload/fatload/fat"
	"github.com/fatload/fatload/loader"
	"github.com/fatload/fatload/log"
	"github.com/fatload/fatload/payload"
)

type args struct {
	out     string
	size    string
	label   string
	verbose bool
}

func main() {
	a := args{}

	cmd := &cobra.Command{
		Use:           "mkimage",
		Short:         "build the FAT32 demo disk image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			l := logger(a.verbose)
			return synthesize(a, l)
		},
	}

	cmd.Flags().StringVar(&a.out, "out", "disk.img", "output image path")
	cmd.Flags().StringVar(&a.size, "size", "64m", "image size (accepts k/m/g suffixes)")
	cmd.Flags().StringVar(&a.label, "label", "", "volume label (defaults to FATLOAD)")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "log build steps")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mkimage: %v\n", err)
		os.Exit(1)
	}
}

func logger(verbose bool) *zap.SugaredLogger {
	if verbose {
		return log.Verbose().Sugar()
	}
	return log.Quiet().Sugar()
}

func synthesize(a args, l *zap.SugaredLogger) (err error) {
	size, err := parseSize(a.size)
	if err != nil {
		return fmt.Errorf("size %q: %w", a.size, err)
	}

	img, err := disk.Allocate(a.out, size)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, img.Close())
	}()
	l.Infow("image allocated", "path", a.out, "bytes", size)

	if err := fat.Format(img, size, fat.FormatOptions{VolumeLabel: a.label}); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	l.Info("volume formatted")

	b, err := fat.NewBuilder(img)
	if err != nil {
		return err
	}

	if err := b.Mkdir("/sbin"); err != nil {
		return err
	}
	if err := b.WriteFile(loader.AppPath, payload.Content()); err != nil {
		return err
	}
	if err := b.Close(); err != nil {
		return err
	}

	fmt.Printf("Created FAT32 disk image: %s (%dMB) with %s\n", a.out, size/(1024*1024), loader.AppPath)
	return nil
}

// parseSize turns "64m" style sizes into bytes.
func parseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "g")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}

	v, err := strconv.ParseInt(ss, 10, 64)
	if err != nil {
		return 0, err
	}
	return v * mult, nil
}
