// Package retry wraps fallible operations (transfer, purge, encryption
// await) with bounded exponential backoff. It is the only place in the
// codebase that implements backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Operation is a single attempt of a fallible action.
type Operation func(ctx context.Context) error

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Operation string
	Number    int
	Err       error
	// Delay is the wait before the next attempt.
	Delay time.Duration
}

// Hook observes failed attempts that will be retried.
type Hook func(Attempt)

// ExhaustedError is returned after the final attempt fails.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: Execute returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Delay returns the wait before attempt n+1, i.e. base * 2^(n-1).
func Delay(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	shift := n - 1
	if shift > 30 {
		shift = 30
	}
	return base << shift
}

// Controller executes operations under the retry policy and reports every
// retried attempt to its hook (metrics).
type Controller struct {
	hook Hook
}

// NewController returns a Controller. hook may be nil.
func NewController(hook Hook) *Controller {
	return &Controller{hook: hook}
}

// Execute runs op up to maxAttempts times, waiting Delay(baseDelay, n)
// after the n-th failure. Permanent errors and context cancellation stop
// the loop early. When every attempt fails the result is *ExhaustedError
// carrying the last underlying error.
func (c *Controller) Execute(ctx context.Context, name string, maxAttempts int, baseDelay time.Duration, op Operation, hooks ...Hook) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		attempt   int
		last      error
		exhausted bool
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= maxAttempts {
			exhausted = true
			return 0, true
		}
		a := Attempt{Operation: name, Number: attempt, Err: last, Delay: Delay(baseDelay, attempt)}
		if c != nil && c.hook != nil {
			c.hook(a)
		}
		for _, h := range hooks {
			h(a)
		}
		return a.Delay, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if ctx.Err() != nil {
			return err
		}

		last = err
		return goretry.RetryableError(err)
	})

	if err != nil && exhausted {
		return &ExhaustedError{Operation: name, Attempts: attempt, Last: last}
	}
	return err
}

// Execute runs op with a hook-less Controller.
func Execute(ctx context.Context, name string, maxAttempts int, baseDelay time.Duration, op Operation) error {
	return NewController(nil).Execute(ctx, name, maxAttempts, baseDelay, op)
}
