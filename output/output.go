// Package output contains the sinks events are delivered to. Sinks own
// wire encoding, connection management and retries; schedulers only see
// the Writer contract.
package output

import (
	"context"

	"github.com/logforge/logforge/event"
)

// Writer consumes events produced by a scheduler.
type Writer interface {
	// Write delivers a single event to the sink. A non-nil error is
	// counted by the caller; it never stops the producing scheduler.
	Write(ctx context.Context, ev event.Event) error
}

// Output is a sink with a lifecycle.
type Output interface {
	Writer

	// Stop stops the output.
	Stop(ctx context.Context) error
}
