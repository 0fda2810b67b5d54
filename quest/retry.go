package quest

import (
	"context"
	"time"
)

// Retry re-runs a read a fixed number of times with a fixed delay between
// attempts. Authentication errors are returned immediately.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetry is applied to every store read.
var DefaultRetry = Retry{Attempts: 3, Delay: 500 * time.Millisecond}

// NoRetry runs the operation once.
var NoRetry = Retry{Attempts: 1}

// Do calls fn until it succeeds, returns an auth error, the attempts run out,
// or ctx is done. The last error is returned.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && r.Delay > 0 {
			timer := time.NewTimer(r.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil || IsAuthError(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}
	return err
}
