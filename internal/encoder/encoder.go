// Package encoder wraps an external encoder process behind a narrow seam.
// All process-specific control (spawning, frame writing, graceful and
// forceful termination, diagnostic-output scanning) lives here, so the rest
// of the engine can treat the encoder as an opaque handle and tests can
// swap in a fake.
package encoder

import (
	"context"
	"time"
)

// ExitStatus describes how an encoder process ended.
type ExitStatus struct {
	ExitCode int
	Err      error
}

// Params holds the parameters for launching an encoder process.
type Params struct {
	// Name labels the process in logs, e.g. "transport" or "recorder".
	Name string
	// Args are the arguments passed to the encoder binary.
	Args []string
}

// Handle controls a single running encoder process.
type Handle interface {
	// Write writes one raw frame to the encoder's input. It returns an
	// error if the process input is no longer writable.
	Write(frame []byte) error

	// Stop requests a graceful shutdown by closing the encoder's input and
	// waits for the process to exit. If grace is non-zero and the process
	// has not exited within it, the process is killed. With grace zero the
	// process is allowed to finish flushing, bounded only by ctx.
	Stop(ctx context.Context, grace time.Duration) error

	// Done is closed after the process has exited. It receives exactly one
	// ExitStatus beforehand.
	Done() <-chan ExitStatus

	// Hints receives best-effort diagnostic hints scraped from the
	// encoder's output. They are non-authoritative and must never be used
	// as a correctness signal.
	Hints() <-chan string

	// Logs returns the most recent diagnostic output lines.
	Logs() [][]byte
}

// Launcher spawns encoder processes.
type Launcher interface {
	Launch(ctx context.Context, params Params) (Handle, error)
}
