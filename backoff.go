package togglekit

import (
	"context"
	"math/rand"
	"time"
)

// Retry pacing for the remote configuration poller. The initial delay is
// short so a transient fetch hiccup recovers quickly; repeated failures
// back off toward the poll interval so a dead endpoint is not hammered
// between ticks.
const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = time.Minute
)

// retryDelay holds the exponential backoff state for one worker. Not
// safe for concurrent use; each worker owns its own instance.
type retryDelay struct {
	current time.Duration
}

func newRetryDelay() *retryDelay {
	return &retryDelay{current: initialRetryDelay}
}

// next returns how long to sleep before the following attempt: the
// current step plus up to 50% jitter, doubling the step until the cap.
// Jitter keeps a fleet of engines polling the same endpoint from
// retrying in lockstep.
func (d *retryDelay) next() time.Duration {
	delay := d.current + time.Duration(rand.Int63n(int64(d.current)/2+1))
	if d.current < maxRetryDelay {
		d.current *= 2
	}
	return delay
}

// reset returns the delay to its initial value after a success.
func (d *retryDelay) reset() {
	d.current = initialRetryDelay
}

// sleep waits for the next delay, or until ctx is cancelled.
func (d *retryDelay) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.next()):
	}
}
