package pacing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/flavumhive/hivemind/internal/config"
)

func testLimits() config.RateLimits {
	// 6 actions/hour: 600s floor, 1200s ceiling, 20s base delay.
	return config.RateLimits{ActionsPerHour: 6, MinDelayBetweenActions: 20}
}

func TestNextDelayBounds(t *testing.T) {
	l := New("reddit", testLimits())
	l.SetRandSource(rand.NewSource(1))

	min := l.MinInterval()
	// Jitter can push past the base ceiling by half the min delay.
	max := l.MaxInterval() + 10*time.Second

	for i := 0; i < 10000; i++ {
		d := l.NextDelay()
		if d < min {
			t.Fatalf("delay %v below floor %v", d, min)
		}
		if d > max {
			t.Fatalf("delay %v above ceiling %v", d, max)
		}
	}
}

func TestNextDelayVaries(t *testing.T) {
	l := New("reddit", testLimits())
	l.SetRandSource(rand.NewSource(42))

	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		seen[l.NextDelay()] = true
	}
	if len(seen) < 10 {
		t.Fatalf("expected varied delays, got %d distinct values", len(seen))
	}
}

func TestMinDelayFloorDominatesWhenLarger(t *testing.T) {
	// 3600 actions/hour would allow 1s, but the 30s delay floor wins.
	l := New("eliza", config.RateLimits{ActionsPerHour: 3600, MinDelayBetweenActions: 30})
	if l.MinInterval() != 30*time.Second {
		t.Fatalf("expected 30s floor, got %v", l.MinInterval())
	}
	if l.MaxInterval() != 60*time.Second {
		t.Fatalf("expected 60s ceiling, got %v", l.MaxInterval())
	}
}

func TestEligibleFirstActionAlwaysAllowed(t *testing.T) {
	l := New("reddit", testLimits())
	if !l.Eligible("post", time.Now()) {
		t.Fatalf("first action must always be eligible")
	}
}

func TestEligibleAfterRecord(t *testing.T) {
	l := New("reddit", testLimits())
	l.SetRandSource(rand.NewSource(7))
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.Record("post", now)

	// Below the hard floor no draw can allow the action.
	if l.Eligible("post", now.Add(10*time.Minute-time.Second)) {
		t.Fatalf("action below the minimum interval must never be eligible")
	}
	// Beyond the ceiling plus max jitter every draw allows it.
	if !l.Eligible("post", now.Add(21*time.Minute)) {
		t.Fatalf("action past the maximum interval must be eligible")
	}
}

func TestEligibleIsPerAction(t *testing.T) {
	l := New("reddit", testLimits())
	now := time.Now()
	l.Record("post", now)

	if !l.Eligible("comment", now) {
		t.Fatalf("recording a post must not block comments")
	}
}

func TestSeedOnlyMovesForward(t *testing.T) {
	l := New("reddit", testLimits())
	newer := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	l.Seed("post", newer)
	l.Seed("post", older)

	got, ok := l.Last("post")
	if !ok || !got.Equal(newer) {
		t.Fatalf("expected seed to keep newest mark, got %v ok=%v", got, ok)
	}

	l.Seed("post", time.Time{})
	if got, _ := l.Last("post"); !got.Equal(newer) {
		t.Fatalf("zero seed must be ignored, got %v", got)
	}
}

func TestEligibleDrawsFreshEachCall(t *testing.T) {
	l := New("reddit", testLimits())
	l.SetRandSource(rand.NewSource(3))
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.Record("post", now)

	// Inside the randomized window the answer depends on the draw; over many
	// calls at the same instant both outcomes must occur.
	probe := now.Add(15 * time.Minute)
	var yes, no int
	for i := 0; i < 2000; i++ {
		if l.Eligible("post", probe) {
			yes++
		} else {
			no++
		}
	}
	if yes == 0 || no == 0 {
		t.Fatalf("expected mixed outcomes inside the window, got yes=%d no=%d", yes, no)
	}
}
