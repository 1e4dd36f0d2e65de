package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// ErrTransient marks failures worth retrying: connection errors, timeouts,
// rate limiting and upstream 5xx responses.
var ErrTransient = errors.New("transient upstream error")

// RetryPolicy retries transient failures with capped exponential backoff and
// jitter. Build one with NewRetryPolicy.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Factor      float64

	// OnRetry, when set, observes every retry before its delay elapses.
	OnRetry func(attempt int, delay time.Duration, err error)

	sleep func(time.Duration)
}

func NewRetryPolicy(maxAttempts int, minDelay, maxDelay time.Duration, factor float64) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if factor < 1 {
		factor = 2
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		MinDelay:    minDelay,
		MaxDelay:    maxDelay,
		Factor:      factor,
		sleep:       time.Sleep,
	}
}

// do runs op until it succeeds, fails with a non-transient error, or the
// attempt ceiling is reached.
func (p *RetryPolicy) do(op func() error) error {
	b := &backoff.Backoff{
		Min:    p.MinDelay,
		Max:    p.MaxDelay,
		Factor: p.Factor,
		Jitter: true,
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		delay := b.Duration()
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		sleep(delay)
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, err)
}
