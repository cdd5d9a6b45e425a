// README: Immediate update coordinator: at-most-one in-flight urgent update with a deadline reset.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon/internal/config"
	"beacon/internal/types"
)

// ForegroundChecker reports whether a synchronous high-accuracy attempt
// is currently possible.
type ForegroundChecker interface {
	Foreground() bool
}

// Coordinator serializes "update now" requests. The pending flag and its
// deadline timer are owned by one mutex so set, clear, and timeout are
// the only transitions.
type Coordinator struct {
	pipeline    *Pipeline
	store       FallbackStore
	transmitter Transmitter
	fg          ForegroundChecker // nil means never foreground
	cfg         config.TrackingConfig
	log         *slog.Logger

	mu       sync.Mutex
	pending  bool
	deadline *time.Timer
}

func NewCoordinator(pipeline *Pipeline, store FallbackStore, transmitter Transmitter, fg ForegroundChecker, cfg config.TrackingConfig, log *slog.Logger) *Coordinator {
	c := &Coordinator{
		pipeline:    pipeline,
		store:       store,
		transmitter: transmitter,
		fg:          fg,
		cfg:         cfg,
		log:         log,
	}
	pipeline.OnDelivered(c.locationDelivered)
	return c
}

// RequestImmediateUpdate asks for the freshest possible position, out of
// band from the routine schedule.
//
// The returned bool reports whether the request is queued: a fresh fix
// will follow through the normal acquisition paths. (false, nil) means
// an update was delivered during this call. A non-nil error means the
// request failed outright; permission errors must be remediated by the
// caller before retrying.
//
// If a request is already pending the call piggybacks on it. Otherwise,
// in a foreground context a direct High-tier pipeline run is made and
// its result returned; in a background context the request is marked
// pending with a deadline and the cached fix is transmitted as an
// interim signal.
func (c *Coordinator) RequestImmediateUpdate(ctx context.Context, agentID types.ID) (bool, error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		c.log.Debug("immediate update already pending, piggybacking", "agent", agentID)
		return true, nil
	}
	direct := c.fg != nil && c.fg.Foreground()
	c.setPendingLocked(agentID)
	c.mu.Unlock()

	if direct {
		out := c.pipeline.Run(ctx, agentID, TierHigh, nil)
		// A fresh delivery already cleared the flag via the pipeline
		// listener; clear covers the stale and failure paths.
		c.clear()
		if out.OK() {
			return false, nil
		}
		return false, out.Err
	}

	// Backgrounded: the flag stays set until an acquisition path succeeds
	// or the deadline fires. Send the cached fix so dispatch has an
	// interim signal meanwhile.
	cached, ok, err := c.store.ReadLastKnown(ctx, agentID)
	if err != nil || !ok {
		if err != nil {
			c.log.Warn("fallback read failed for interim transmit", "agent", agentID, "err", err)
		}
		return true, nil
	}
	if err := c.transmitter.Submit(ctx, agentID, cached); err != nil {
		c.log.Warn("interim cached transmit failed", "agent", agentID, "err", err)
	}
	return true, nil
}

// Pending reports whether an immediate request is currently in flight.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// setPendingLocked arms the flag and its deadline. The timer clears the
// flag unconditionally when it fires so a lost request can never leave
// the coordinator stuck.
func (c *Coordinator) setPendingLocked(agentID types.ID) {
	c.pending = true
	c.deadline = time.AfterFunc(c.cfg.ImmediateDeadline, func() {
		c.mu.Lock()
		if c.pending {
			c.log.Warn("immediate update deadline elapsed, clearing", "agent", agentID)
			c.pending = false
			c.deadline = nil
		}
		c.mu.Unlock()
	})
}

func (c *Coordinator) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return
	}
	c.pending = false
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

// locationDelivered satisfies a pending request early: any fresh success
// from any acquisition path clears the flag.
func (c *Coordinator) locationDelivered(Sample) {
	c.clear()
}
