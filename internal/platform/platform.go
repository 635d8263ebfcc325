// Package platform implements the per-platform session managers. Each
// handler owns exactly one external session (API client or browser) and one
// store session, and brokers all persistence for its platform's actions.
package platform

import (
	"context"
	"time"

	"github.com/flavumhive/hivemind/internal/pacing"
	"github.com/flavumhive/hivemind/internal/status"
	"github.com/flavumhive/hivemind/internal/store"
)

// Handler is one platform worker's cycle surface.
type Handler interface {
	// Name returns the platform name (e.g. "reddit").
	Name() string
	// RunCycle performs one scan/post/comment pass. Per-item failures are
	// handled inside; a returned error means the whole cycle failed.
	RunCycle(ctx context.Context) error
	// CycleDelay is the sleep between cycles.
	CycleDelay() time.Duration
	// Close tears down the external session and releases the store session.
	Close() error
}

// seedLimiter primes a limiter's last-action marks from the database, so the
// rate limit survives restarts regardless of checkpoint staleness.
func seedLimiter(ctx context.Context, sess *store.Session, limiter *pacing.Limiter, platform string) {
	for _, action := range []string{store.ActionPost, store.ActionComment, store.ActionReply} {
		if t, ok, err := sess.LastActionTime(ctx, platform, action); err == nil && ok {
			limiter.Seed(action, t)
		}
	}
}

// writeCheckpoint persists the advisory pacing snapshot after a successful
// action. Checkpoint failures never fail the action that triggered them.
func writeCheckpoint(path string, limiter *pacing.Limiter, actionsPerHour, minDelay int, at time.Time, running bool) error {
	cp := status.Checkpoint{
		IsRunning:          running,
		ActionsPerHour:     actionsPerHour,
		MinDelay:           minDelay,
		CurrentMinInterval: int(limiter.MinInterval().Seconds()),
		CurrentMaxInterval: int(limiter.MaxInterval().Seconds()),
	}
	if !at.IsZero() {
		cp.LastActionTime = &at
	}
	return status.Save(path, cp)
}
