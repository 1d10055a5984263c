package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Publisher uploads a rendered card and returns its public URL
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// PublishError reports an upload failure
type PublishError struct {
	Backend   string
	Temporary bool // Worth retrying: network failures, 5xx, rate limits
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Backend, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Retrying retries temporary publish failures with exponential backoff
type Retrying struct {
	next            Publisher
	name            string
	retries         uint64
	initialInterval time.Duration
}

// NewRetrying wraps next so that temporary failures are retried up to retries times
func NewRetrying(next Publisher, name string, retries uint64) *Retrying {
	return &Retrying{
		next:            next,
		name:            name,
		retries:         retries,
		initialInterval: 500 * time.Millisecond,
	}
}

// Publish implements the Publisher interface
func (r *Retrying) Publish(ctx context.Context, path string) (string, error) {
	var link string
	attempt := 0

	operation := func() error {
		attempt++
		u, err := r.next.Publish(ctx, path)
		if err != nil {
			var perr *PublishError
			if errors.As(err, &perr) && !perr.Temporary {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Int("attempt", attempt).Str("backend", r.name).Msg("Publish failed")
			return err
		}
		link = u
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx))
	if err != nil {
		var perr *PublishError
		if !errors.As(err, &perr) {
			err = &PublishError{Backend: r.name, Err: err}
		}
		return "", err
	}
	return link, nil
}
