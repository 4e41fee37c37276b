package compactor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tessera-io/tessera/internal/logging"
)

// State is the controller's lifecycle state.
type State int32

const (
	// StateRunning is the steady-state loop: sleep, sweep, pass, repeat.
	StateRunning State = iota

	// StateDraining flushes back-to-back until no work remains, backing
	// off exponentially while the WAL stays busy.
	StateDraining

	// StateStopped is terminal.
	StateStopped
)

// String names the state for logs.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Controller owns the compaction loop and its drain/shutdown behavior.
type Controller struct {
	engine     *Engine
	interval   time.Duration
	backoffMin time.Duration
	backoffMax time.Duration
	log        *logging.Logger

	state   atomic.Int32
	drainCh chan struct{}
}

// NewController creates a Controller in the Running state.
func NewController(engine *Engine, interval, backoffMin, backoffMax time.Duration, log *logging.Logger) *Controller {
	return &Controller{
		engine:     engine,
		interval:   interval,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
		log:        log.WithComponent("controller"),
		drainCh:    make(chan struct{}, 1),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Drain switches the loop to drain mode: the sleep is skipped, small
// groups flush immediately and the loop exits once the WAL is empty.
func (c *Controller) Drain() {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		c.engine.SetDraining(true)
		c.log.Info("drain requested")
		select {
		case c.drainCh <- struct{}{}:
		default:
		}
	}
}

// Run executes the loop until the context is cancelled or a drain
// completes. Cancellation is only observed between passes, so a pass
// always finishes cleanly rather than tearing down mid-merge.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.engine.Recover(ctx); err != nil {
		return fmt.Errorf("compactor: startup recovery: %w", err)
	}

	backoff := c.backoffMin
	for {
		switch c.State() {
		case StateStopped:
			return nil

		case StateRunning:
			select {
			case <-ctx.Done():
				c.stop()
				return nil
			case <-c.drainCh:
				// Skip the sleep and start flushing now.
			case <-time.After(c.interval):
			}
			if c.State() == StateStopped {
				return nil
			}
			c.engine.RunPass(ctx)
			if ctx.Err() != nil {
				c.stop()
				return nil
			}

		case StateDraining:
			stats := c.engine.RunPass(ctx)
			if ctx.Err() != nil {
				c.stop()
				return nil
			}
			if !stats.HasWork() {
				c.log.Info("drain complete")
				c.stop()
				return nil
			}
			c.log.Debug("drain pass left work behind", map[string]any{
				"scanned": stats.Scanned,
				"pending": stats.PendingRemaining,
				"backoff": backoff.String(),
			})
			select {
			case <-ctx.Done():
				c.stop()
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.backoffMax {
				backoff = c.backoffMax
			}
		}
	}
}

func (c *Controller) stop() {
	c.state.Store(int32(StateStopped))
}
