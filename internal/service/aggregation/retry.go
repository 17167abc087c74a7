package aggregation

import (
	"context"
	"time"
)

// Options tunes how often a failed recompute is retried. Retrying is always
// safe because a recompute is a pure function of the current ledger state.
type Options struct {
	Attempts int
	Backoff  time.Duration
}

type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

func newRetryPolicy(opts Options) retryPolicy {
	p := retryPolicy{attempts: opts.Attempts, backoff: opts.Backoff}
	if p.attempts < 1 {
		p.attempts = 1
	}
	if p.backoff < 0 {
		p.backoff = 0
	}
	return p
}

// do runs fn until it succeeds, attempts run out or ctx is done. The wait
// between attempts grows linearly with the attempt number.
func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.attempts || ctx.Err() != nil {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
