package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	appLog "shiftsync/internal/log"
)

// Runnable is anything that performs one sync run.
type Runnable interface {
	Run(ctx context.Context) Report
}

// Coordinator serializes runs coming from the scheduler and from manual
// triggers, and remembers the last report.
type Coordinator struct {
	ctx    context.Context
	runner Runnable

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *Report
}

// NewCoordinator returns a Coordinator whose runs use ctx.
func NewCoordinator(ctx context.Context, r Runnable) *Coordinator {
	return &Coordinator{ctx: ctx, runner: r}
}

// RunOnce runs synchronously. It returns false without running if another
// run is in progress.
func (c *Coordinator) RunOnce() (Report, bool) {
	if !c.running.CompareAndSwap(false, true) {
		appLog.Info("sync already running; skipping")
		return Report{}, false
	}
	return c.run(), true
}

// Trigger starts a run in the background. It returns false if a run is
// already in progress.
func (c *Coordinator) Trigger() bool {
	if !c.running.CompareAndSwap(false, true) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	return true
}

// run expects the running flag to be held by the caller.
func (c *Coordinator) run() Report {
	defer c.running.Store(false)

	rep := c.runner.Run(c.ctx)

	c.mu.Lock()
	c.last = &rep
	c.mu.Unlock()
	return rep
}

// Running reports whether a run is in progress.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Last returns the most recent report, if any run has finished.
func (c *Coordinator) Last() (Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

// Wait blocks until background runs started by Trigger have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
