package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/platform"
)

// blockingHandler ignores ctx and sleeps through the whole drain window,
// simulating a worker wedged inside a platform call.
type blockingHandler struct {
	fakeHandler
	block time.Duration
}

func (b *blockingHandler) RunCycle(ctx context.Context) error {
	b.mu.Lock()
	b.cycles++
	b.mu.Unlock()
	time.Sleep(b.block)
	return nil
}

type fakeHandler struct {
	name  string
	delay time.Duration

	mu        sync.Mutex
	cycles    int
	closed    bool
	panicLeft int
	cycleErr  error
}

func (f *fakeHandler) Name() string { return f.name }

func (f *fakeHandler) CycleDelay() time.Duration { return f.delay }

func (f *fakeHandler) RunCycle(ctx context.Context) error {
	f.mu.Lock()
	f.cycles++
	if f.panicLeft > 0 {
		f.panicLeft--
		f.mu.Unlock()
		panic("simulated worker crash")
	}
	err := f.cycleErr
	f.mu.Unlock()
	return err
}

func (f *fakeHandler) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHandler) cycleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cycles
}

func (f *fakeHandler) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testGlobal(t *testing.T) config.GlobalConfig {
	t.Helper()
	return config.GlobalConfig{
		StateDir:        t.TempDir(),
		SupervisePeriod: 1,
		DrainTimeout:    5,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

func TestNewRequiresHandlers(t *testing.T) {
	if _, err := New(testGlobal(t), nil); err == nil {
		t.Fatalf("expected error for zero handlers")
	}
}

func TestNewRejectsDuplicatePlatforms(t *testing.T) {
	hs := []platform.Handler{
		&fakeHandler{name: "reddit"},
		&fakeHandler{name: "reddit"},
	}
	if _, err := New(testGlobal(t), hs); err == nil {
		t.Fatalf("expected error for duplicate platform names")
	}
}

func TestRunCyclesAndStops(t *testing.T) {
	h := &fakeHandler{name: "reddit", delay: 10 * time.Millisecond}
	o, err := New(testGlobal(t), []platform.Handler{h})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(context.Background()) }()

	waitFor(t, 3*time.Second, func() bool { return h.cycleCount() >= 2 })
	if got := o.State(); got != Running {
		t.Fatalf("expected Running, got %s", got)
	}

	o.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not return after Stop")
	}
	if o.State() != Stopped {
		t.Fatalf("expected Stopped after Stop, got %s", o.State())
	}
	if !h.wasClosed() {
		t.Fatalf("handler must be closed on shutdown")
	}
}

func TestRunWhileRunningFails(t *testing.T) {
	h := &fakeHandler{name: "eliza", delay: 10 * time.Millisecond}
	o, err := New(testGlobal(t), []platform.Handler{h})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	go func() { _ = o.Run(context.Background()) }()
	defer o.Stop()

	waitFor(t, 3*time.Second, func() bool { return o.State() == Running })
	if err := o.Run(context.Background()); err == nil {
		t.Fatalf("second Run must fail while running")
	}
}

func TestSupervisorRestartsCrashedWorker(t *testing.T) {
	h := &fakeHandler{name: "twitter", delay: 10 * time.Millisecond, panicLeft: 1}
	o, err := New(testGlobal(t), []platform.Handler{h})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	go func() { _ = o.Run(context.Background()) }()
	defer o.Stop()

	// First cycle panics and kills the worker; the supervisor ticker
	// (1s here) must bring it back, after which cycles accumulate again.
	waitFor(t, 5*time.Second, func() bool { return h.cycleCount() >= 3 })
}

func TestDrainTimeoutSkipsBusyHandlerClose(t *testing.T) {
	busy := &blockingHandler{
		fakeHandler: fakeHandler{name: "twitter", delay: 10 * time.Millisecond},
		block:       10 * time.Second,
	}
	idle := &fakeHandler{name: "reddit", delay: 10 * time.Millisecond}
	cfg := testGlobal(t)
	cfg.DrainTimeout = 1
	o, err := New(cfg, []platform.Handler{busy, idle})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	go func() { _ = o.Run(context.Background()) }()

	waitFor(t, 3*time.Second, func() bool {
		return busy.cycleCount() >= 1 && idle.cycleCount() >= 1
	})
	o.Stop()

	// The wedged worker is still inside RunCycle when the drain timeout
	// expires; its handler must not be closed out from under it.
	if busy.wasClosed() {
		t.Fatalf("busy handler must not be closed while its worker is running")
	}
	if !idle.wasClosed() {
		t.Fatalf("drained handler must still be closed")
	}
}

func TestFailingCycleDoesNotKillWorker(t *testing.T) {
	h := &fakeHandler{name: "reddit", delay: 10 * time.Millisecond,
		cycleErr: context.DeadlineExceeded}
	o, err := New(testGlobal(t), []platform.Handler{h})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	go func() { _ = o.Run(context.Background()) }()

	// The first cycle runs immediately and fails; the worker must still be
	// alive, just backing off, and shutdown must stay clean.
	waitFor(t, 3*time.Second, func() bool { return h.cycleCount() >= 1 })
	o.Stop()
	if !h.wasClosed() {
		t.Fatalf("handler must be closed on shutdown")
	}
}
