// Package log installs the process-wide zap logger. The demo's console
// transcript is written to stdout by the loader; diagnostics always go to
// stderr so the two streams never mix.
package log

import "go.uber.org/zap"

// Quiet discards diagnostics. The canonical demo run uses it so only the
// transcript reaches the terminal.
func Quiet(_ ...zap.Option) *zap.Logger {
	l := zap.NewNop()
	zap.ReplaceGlobals(l)
	return l
}

// Verbose installs a development logger on stderr.
func Verbose(opts ...zap.Option) *zap.Logger {
	opts = append(opts, zap.WithCaller(true))
	l, err := zap.NewDevelopment(opts...)
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(l)

	return zap.L()
}
