package sink

import (
	"context"

	"github.com/poiesic/logingest/core"
)

// Sink receives batches of parsed records.
// Write is called concurrently from several dispatch goroutines and must be
// safe for that. A non-nil error marks the whole batch as failed; delivery is
// at-least-once, so a Sink should tolerate seeing the same records again.
type Sink interface {
	Write(ctx context.Context, batch []core.Record) error
}

// Func adapts an ordinary function to the Sink interface.
type Func func(ctx context.Context, batch []core.Record) error

// Write calls f(ctx, batch).
func (f Func) Write(ctx context.Context, batch []core.Record) error {
	return f(ctx, batch)
}
