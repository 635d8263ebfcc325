// Package retry provides an explicit bounded-retry policy for fallible
// external calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrExhausted marks that all attempts were spent. Match with errors.Is.
var ErrExhausted = errors.New("attempts exhausted")

// Policy retries a call a bounded number of times with linearly increasing
// delay. The zero value performs exactly one attempt.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Do runs fn until it succeeds, attempts run out, or ctx is done. The wait
// before attempt n is n*Delay. On exhaustion the returned error matches both
// ErrExhausted and the last underlying error.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			wait := time.Duration(attempt) * p.Delay
			slog.Warn("retrying after failure", "op", op, "attempt", attempt, "of", attempts, "wait", wait, "error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &exhaustedError{op: op, attempts: attempts, last: lastErr}
}

type exhaustedError struct {
	op       string
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.op, ErrExhausted, e.attempts, e.last)
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.last}
}
