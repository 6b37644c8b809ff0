// Package wait implements the bounded poll used at every blocking point of a
// scenario: element resolution, actionability, assertions and page readiness.
package wait

import (
	"context"
	"errors"
	"time"
)

// Defaults mirror the per-wait-point budget used by the CLI.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// ErrTimeout is returned when the condition never held within the timeout.
var ErrTimeout = errors.New("timed out waiting for condition")

// Options bounds a poll.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// CheckFunc reports whether the awaited condition holds. A non-nil error
// aborts the poll immediately; transient failures should return (false, nil).
type CheckFunc func(ctx context.Context) (bool, error)

// Until evaluates check immediately and then once per interval until it
// reports done, returns an error, the timeout elapses or ctx ends.
//
// The final evaluation happens at or after the deadline, so a condition that
// never holds fails no earlier than Timeout and no later than Timeout plus one
// Interval (plus the cost of a single check).
func Until(ctx context.Context, opts Options, check CheckFunc) error {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		sleep := opts.Interval
		if remaining < sleep {
			sleep = remaining
		}

		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// IsTimeout reports whether err is a poll timeout or an expired context.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
