package worker

import (
	"context"
	"time"
)

// requeueTimeout bounds a push back onto a Redis queue.
const requeueTimeout = 5 * time.Second

// requeueContext outlives cancellation of ctx so a popped item can still be
// pushed back while the worker is shutting down.
func requeueContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
