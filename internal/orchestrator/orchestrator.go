// Package orchestrator runs one worker goroutine per enabled platform and
// supervises them for the lifetime of the process.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/platform"
	"github.com/flavumhive/hivemind/internal/status"
)

// State is the orchestrator lifecycle phase.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// errorBackoff is the pause after a failed cycle before the worker tries
// again. Platform outages resolve on their own; hammering makes them worse.
const errorBackoff = 60 * time.Second

// Orchestrator owns the platform workers. Handlers are constructed by the
// caller; a handler that cannot be constructed is a startup failure, not
// something the orchestrator papers over.
type Orchestrator struct {
	cfg      config.GlobalConfig
	handlers []platform.Handler
	log      *slog.Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	exits   chan string
	byName  map[string]platform.Handler
	stopped map[string]bool // workers intentionally shut down
	exited  map[string]bool // worker goroutines that have returned
}

// New creates an Orchestrator over already-constructed handlers.
func New(cfg config.GlobalConfig, handlers []platform.Handler) (*Orchestrator, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("no platforms enabled")
	}
	byName := make(map[string]platform.Handler, len(handlers))
	for _, h := range handlers {
		if _, dup := byName[h.Name()]; dup {
			return nil, fmt.Errorf("duplicate handler for platform %s", h.Name())
		}
		byName[h.Name()] = h
	}
	return &Orchestrator{
		cfg:      cfg,
		handlers: handlers,
		byName:   byName,
		log:      slog.With("component", "orchestrator"),
	}, nil
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run starts all workers and blocks until ctx is cancelled. Workers that die
// with an error are restarted by the supervisor while the orchestrator is
// running. Returns after all workers drained or the drain timeout expired.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.state != Stopped {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already %s", o.state)
	}
	o.state = Starting
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.exits = make(chan string, len(o.handlers))
	o.stopped = make(map[string]bool)
	o.exited = make(map[string]bool)
	o.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range o.handlers {
		wg.Add(1)
		go func(h platform.Handler) {
			defer wg.Done()
			o.runWorker(runCtx, h)
		}(h)
		o.log.Info("worker started", "platform", h.Name())
	}

	o.mu.Lock()
	o.state = Running
	o.mu.Unlock()
	o.log.Info("orchestrator running", "platforms", len(o.handlers))

	supervise := time.Duration(o.cfg.SupervisePeriod) * time.Second
	if supervise <= 0 {
		supervise = 60 * time.Second
	}
	ticker := time.NewTicker(supervise)
	defer ticker.Stop()

	dead := make(map[string]bool)
loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case name := <-o.exits:
			o.mu.Lock()
			intentional := o.stopped[name]
			o.mu.Unlock()
			if !intentional {
				o.log.Warn("worker exited unexpectedly", "platform", name)
				dead[name] = true
			}
		case <-ticker.C:
			for name := range dead {
				h := o.byName[name]
				o.log.Info("restarting worker", "platform", name)
				wg.Add(1)
				go func(h platform.Handler) {
					defer wg.Done()
					o.runWorker(runCtx, h)
				}(h)
				delete(dead, name)
			}
		}
	}

	o.mu.Lock()
	o.state = Stopping
	o.mu.Unlock()
	o.log.Info("shutting down, draining workers")

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	drainTimeout := time.Duration(o.cfg.DrainTimeout) * time.Second
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		o.log.Warn("drain timeout expired, abandoning in-flight cycles")
	}

	for _, h := range o.handlers {
		o.mu.Lock()
		safe := o.exited[h.Name()]
		o.mu.Unlock()
		if !safe {
			// The worker is still inside RunCycle; closing the handler under
			// it would race. Leave it for process exit to reap.
			o.log.Warn("worker still busy, skipping handler close", "platform", h.Name())
			o.markStopped(h.Name())
			continue
		}
		if err := h.Close(); err != nil {
			o.log.Warn("handler close failed", "platform", h.Name(), "error", err)
		}
		o.markStopped(h.Name())
	}

	o.mu.Lock()
	o.state = Stopped
	close(o.done)
	o.mu.Unlock()
	o.log.Info("orchestrator stopped")
	return ctx.Err()
}

// Stop requests shutdown and waits for Run to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// runWorker is the per-platform loop: run a cycle, sleep, repeat. A failed
// cycle backs off for a fixed minute instead of the platform's cycle delay.
func (o *Orchestrator) runWorker(ctx context.Context, h platform.Handler) {
	log := o.log.With("platform", h.Name())
	o.mu.Lock()
	o.exited[h.Name()] = false
	o.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panicked", "panic", r)
		}
		o.mu.Lock()
		o.exited[h.Name()] = true
		o.mu.Unlock()
		select {
		case o.exits <- h.Name():
		default:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			o.markStopped(h.Name())
			return
		}
		delay := h.CycleDelay()
		if err := h.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				o.markStopped(h.Name())
				return
			}
			log.Error("cycle failed", "error", err)
			delay = errorBackoff
		}
		select {
		case <-ctx.Done():
			o.markStopped(h.Name())
			return
		case <-time.After(delay):
		}
	}
}

func (o *Orchestrator) markStopped(name string) {
	o.mu.Lock()
	o.stopped[name] = true
	o.mu.Unlock()
	// Flip the advisory checkpoint so external status readers see the
	// platform as not running.
	path := status.Path(o.cfg.StateDir, name)
	if cp, found, err := status.Load(path); err == nil && found {
		cp.IsRunning = false
		if err := status.Save(path, cp); err != nil {
			o.log.Warn("failed to update checkpoint on stop", "platform", name, "error", err)
		}
	}
}
