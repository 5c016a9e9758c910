package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-social-chat/internal/repo"
)

// defaultReadTries bounds retries of idempotent reads when a service was
// built without an explicit limit.
const defaultReadTries = 3

// readRetry runs an idempotent read with bounded exponential backoff.
// Not-found results are final. Writes must never go through here.
func readRetry[T any](ctx context.Context, tries uint, name string, op func() (T, error)) (T, error) {
	if tries == 0 {
		tries = defaultReadTries
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, context.Canceled) {
			return v, backoff.Permanent(err)
		}
		zerolog.Ctx(ctx).Debug().Err(err).Str("op", name).Int("attempt", attempt).Msg("read failed, retrying")
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(2*time.Second),
	)
}
