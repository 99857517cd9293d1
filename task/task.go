// Package task wraps goroutines in the spawn-with-closure / blocking-join
// shape the runtime needs: the spawner hands the worker its input by
// value, and Join is the only way results travel back, so the two
// execution contexts never share mutable state.
package task

// Handle is a joinable reference to a spawned worker.
type Handle struct {
	done chan error
}

// Spawn runs fn on its own goroutine and returns a joinable handle.
// The worker runs to completion; there is no cancellation path.
func Spawn(fn func() error) *Handle {
	h := &Handle{done: make(chan error, 1)}

	go func() {
		h.done <- fn()
	}()

	return h
}

// Join blocks until the worker finishes and returns its error. The
// channel receive orders everything the worker did before returning
// ahead of everything the joiner does afterwards.
//
// Join must be called at most once per handle.
func (h *Handle) Join() error {
	return <-h.done
}
