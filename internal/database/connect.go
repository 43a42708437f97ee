package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const maxConnectBackoff = 8 * time.Second

// withRetry calls ping until it succeeds, attempts run out or ctx ends.
// The wait doubles after every failure.
func withRetry(ctx context.Context, attempts int, log zerolog.Logger, target string, ping func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond

	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn().Err(err).Str("target", target).Int("attempt", i).Dur("retry_in", backoff).Msg("Connection failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxConnectBackoff {
			backoff = maxConnectBackoff
		}
	}
	return err
}
