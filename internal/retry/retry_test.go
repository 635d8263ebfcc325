package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	p := Policy{Attempts: 3, Delay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{Attempts: 3, Delay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustion(t *testing.T) {
	p := Policy{Attempts: 2, Delay: time.Millisecond}
	last := errors.New("still broken")
	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return last
	})
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, last) {
		t.Fatalf("expected the last underlying error to be wrapped, got %v", err)
	}
}

func TestDoZeroValueRunsOnce(t *testing.T) {
	var p Policy
	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return errors.New("nope")
	})
	if calls != 1 {
		t.Fatalf("zero policy must run exactly once, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	p := Policy{Attempts: 10, Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		// Cancel while Do waits between attempts.
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, "op", func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}
