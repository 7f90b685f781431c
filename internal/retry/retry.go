// Package retry re-runs a whole engine operation when it reports a write
// conflict. The engine itself never retries; a conflict variant means the
// caller should roll back and start over in a fresh transaction, and this
// package is that loop with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts caps total attempts, including the first. Zero means the
	// default of 5.
	MaxAttempts uint64

	// InitialInterval is the first backoff delay. Zero means 50ms.
	InitialInterval time.Duration
}

// DefaultPolicy suits short transactional operations contending on hot rows.
var DefaultPolicy = Policy{MaxAttempts: 5, InitialInterval: 50 * time.Millisecond}

// errConflict signals the backoff loop to go around again.
var errConflict = errors.New("write conflict")

// Do runs op until it stops reporting a conflict, the attempt budget is
// spent, or the context is done. op reports conflict=true to request another
// attempt; any error it returns is final and comes back unchanged.
//
// op must re-run the operation from the top in a fresh transaction; a
// conflicted transaction cannot be reused.
func (p Policy) Do(ctx context.Context, log *zap.Logger, op func(ctx context.Context) (conflict bool, err error)) error {
	if log == nil {
		log = zap.NewNop()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultPolicy.MaxAttempts
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	if exp.InitialInterval == 0 {
		exp.InitialInterval = DefaultPolicy.InitialInterval
	}

	var finalErr error
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		conflict, err := op(ctx)
		if err != nil {
			finalErr = err
			return backoff.Permanent(err)
		}
		if conflict {
			log.Debug("write conflict, retrying operation", zap.Int("attempt", attempt))
			return errConflict
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(exp, maxAttempts-1), ctx))

	if finalErr != nil {
		return finalErr
	}
	if errors.Is(err, errConflict) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrAttemptsExhausted
	}
	return err
}

// ErrAttemptsExhausted reports that every attempt ended in a write conflict.
var ErrAttemptsExhausted = errors.New("operation still conflicting after final retry")
