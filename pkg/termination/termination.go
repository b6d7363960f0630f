// Package termination provides the one-way stop signal that long-running
// graph computations poll between batches.
package termination

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// Flag is polled by executors and traversals. Once a flag reports stopped it
// never reports running again.
type Flag interface {
	// Running reports whether the computation may continue.
	Running() bool
	// AssertRunning returns a TERMINATED error once the flag has stopped.
	AssertRunning() error
}

type alwaysRunning struct{}

func (alwaysRunning) Running() bool        { return true }
func (alwaysRunning) AssertRunning() error { return nil }

// RunningTrue is a flag that never stops.
var RunningTrue Flag = alwaysRunning{}

const (
	stateRunning int32 = iota
	stateStopped
)

// Controller is a Flag that can be stopped exactly once.
type Controller struct {
	state  atomic.Int32
	mu     sync.Mutex
	reason string
	done   chan struct{}
}

// New creates a running controller.
func New() *Controller {
	return &Controller{done: make(chan struct{})}
}

// Running reports whether Stop has not been called yet.
func (c *Controller) Running() bool {
	return c.state.Load() == stateRunning
}

// AssertRunning returns nil while running and a TERMINATED error afterwards.
func (c *Controller) AssertRunning() error {
	if c.Running() {
		return nil
	}
	return apperrors.New(apperrors.CodeTerminated, c.Reason())
}

// Stop moves the controller to stopped. Only the first call records its
// reason; later calls are no-ops. Returns true for the call that stopped it.
// The reason is stored before the state flips, so an observer that sees
// stopped always sees the reason.
func (c *Controller) Stop(reason string) bool {
	if reason == "" {
		reason = "computation terminated"
	}
	c.mu.Lock()
	if c.state.Load() != stateRunning {
		c.mu.Unlock()
		return false
	}
	c.reason = reason
	c.state.Store(stateStopped)
	c.mu.Unlock()
	close(c.done)
	return true
}

// Reason returns the reason given to the first Stop call, or "" while running.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Done returns a channel closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// StopOnContext stops the controller when ctx ends. The returned function
// releases the watcher and must be called once the computation is over.
func (c *Controller) StopOnContext(ctx context.Context) (release func()) {
	quit := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// release wins over a cancellation that raced with it
			select {
			case <-quit:
				return
			default:
			}
			c.Stop(ctx.Err().Error())
		case <-quit:
		case <-c.done:
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(quit) }) }
}

// FromContext returns a controller that stops when ctx ends, plus its release function.
func FromContext(ctx context.Context) (*Controller, func()) {
	c := New()
	return c, c.StopOnContext(ctx)
}
