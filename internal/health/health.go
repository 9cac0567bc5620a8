// Package health runs the distributor's per-node probe scheduler: one
// recurring task per registered node, independent of the directory lock.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sebas/distgrid/internal/node"
)

const (
	// Interval is how often each node's probe task runs.
	Interval = 30 * time.Second
	// Deadline bounds a single probe attempt.
	Deadline = 5 * time.Minute
)

// Checker owns one goroutine per registered node, probing it on Interval
// and cancelling the probe if it exceeds Deadline. Tasks touch only the
// target Node Handle's own lock, never the distributor's directory lock.
type Checker struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// New constructs an empty Checker.
func New() *Checker {
	return &Checker{tasks: make(map[string]context.CancelFunc)}
}

// Register starts a recurring health-check task for handle, keyed by id.
// Registering the same id again replaces the previous task.
func (c *Checker) Register(id string, handle *node.Handle) {
	c.mu.Lock()
	if cancel, ok := c.tasks[id]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.tasks[id] = cancel
	c.mu.Unlock()

	go c.run(ctx, handle)
}

func (c *Checker) run(ctx context.Context, handle *node.Handle) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, Deadline)
			handle.RunHealthCheck(probeCtx)
			cancel()
		}
	}
}

// IsRegistered reports whether id currently has a scheduled task.
func (c *Checker) IsRegistered(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[id]
	return ok
}

// Deregister stops id's recurring task, if one is running.
func (c *Checker) Deregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.tasks[id]; ok {
		cancel()
		delete(c.tasks, id)
	}
}

// Refresh runs an immediate out-of-band probe against handle without
// disturbing its regularly scheduled task.
func (c *Checker) Refresh(ctx context.Context, handle *node.Handle) {
	probeCtx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()
	handle.RunHealthCheck(probeCtx)
}

// Close stops every registered task.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.tasks {
		cancel()
		delete(c.tasks, id)
	}
}
