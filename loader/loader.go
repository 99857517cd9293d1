// Package loader drives the demo's runtime half: mount the attached
// block device, read the well-known app image, and have a spawned worker
// verify the bytes before the final status line is allowed out.
package loader

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatload/fatload/disk"
	"github.com/fatload/fatload/fat"
	"github.com/fatload/fatload/payload"
	"github.com/fatload/fatload/task"
)

// AppPath is the single file the demo loads.
const AppPath = "/sbin/origin.bin"

const workerName = "worker1"

var (
	// ErrTruncatedRead means the app file is shorter than the expected
	// payload: the image is corrupt or built from other inputs.
	ErrTruncatedRead = errors.New("loader: app file truncated")

	// ErrWorkerFailed means the verification worker rejected the bytes.
	ErrWorkerFailed = errors.New("loader: worker verification failed")
)

// Runtime executes the sequential load-and-verify flow. Progress lines go
// to console (they are part of the external contract); diagnostics go to
// the logger. The flow never branches back: the first failing phase
// aborts the run and the success lines are never printed after a failure.
type Runtime struct {
	dev     disk.Device
	console io.Writer
	log     *zap.SugaredLogger

	// workerDelay stalls the worker before it checks anything. Tests use
	// it to prove the final line waits for the join barrier.
	workerDelay time.Duration
}

// New builds a Runtime over an attached block device.
func New(dev disk.Device, console io.Writer, l *zap.SugaredLogger) *Runtime {
	return &Runtime{dev: dev, console: console, log: l}
}

// Run walks the whole pipeline: mount, open, read, spawn, join, report.
// The returned error wraps the failing phase's sentinel so callers can
// map it to an exit status.
func (r *Runtime) Run() error {
	fmt.Fprintln(r.console, "Load app from fat-fs ...")

	fs, err := fat.Mount(r.dev)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	r.log.Debugw("volume mounted", "blocks", r.dev.BlockCount())

	buf, err := r.loadApp(fs, AppPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", AppPath, err)
	}
	r.log.Debugw("app loaded", "bytes", len(buf))

	fmt.Fprintln(r.console, "Wait for workers to exit ...")

	// The worker gets its own copy of the bytes it checks; nothing is
	// shared between the two execution contexts.
	code := make([]byte, payload.CheckLen)
	copy(code, buf)

	worker := task.Spawn(func() error {
		if r.workerDelay > 0 {
			time.Sleep(r.workerDelay)
		}
		return checkCode(r.console, workerName, code)
	})

	if err := worker.Join(); err != nil {
		return err
	}
	r.log.Debugw("worker joined", "name", workerName)

	fmt.Fprintln(r.console, "Load app from disk ok!")
	return nil
}

// loadApp opens fname and reads exactly payload.Size bytes from it.
func (r *Runtime) loadApp(fs *fat.Fs, fname string) ([]byte, error) {
	fmt.Fprintf(r.console, "fname: %s\n", fname)

	f, err := fs.Open(fname)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, payload.Size)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrTruncatedRead, f.Size(), payload.Size)
		}
		return nil, err
	}

	return buf, nil
}

// checkCode re-derives the expected pattern and compares it against the
// bytes the worker was handed, printing the inspected bytes and a
// pass/fail marker.
func checkCode(console io.Writer, name string, code []byte) error {
	fmt.Fprintf(console, "%s checks code:\n", name)

	ok := true
	var line strings.Builder
	for i, b := range code {
		if i > 0 {
			line.WriteByte(' ')
		}
		fmt.Fprintf(&line, "%#x", b)
		if b != payload.Byte(i) {
			ok = false
		}
	}
	fmt.Fprintln(console, line.String())

	if !ok {
		fmt.Fprintf(console, "%s FAILED!\n", name)
		return fmt.Errorf("%w: got [%s], want pattern", ErrWorkerFailed, line.String())
	}

	fmt.Fprintf(console, "%s ok!\n", name)
	return nil
}
