package runner

import (
	"context"
	"time"
)

// Pacer enforces the delay between sequential submissions. It is an
// explicit policy type rather than a bare sleep so tests can substitute
// their own implementation.
type Pacer interface {
	// Wait blocks until the next submission may start, or until the
	// context is cancelled.
	Wait(ctx context.Context) error
}

type fixedPacer struct {
	interval time.Duration
}

// Compile-time interface check.
var _ Pacer = (*fixedPacer)(nil)

// NewFixedPacer returns a pacer that suspends for the full interval on
// every Wait.
func NewFixedPacer(interval time.Duration) Pacer {
	return &fixedPacer{interval: interval}
}

// Wait sleeps for the whole interval, counted from the completion of the
// previous item. How long that item took to submit does not shorten the
// delay; the downstream system needs the full quiet period between
// requests regardless of its own response times.
func (p *fixedPacer) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
