// README: Tracking mode controller: owns which acquisition loops are active.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"beacon/internal/config"
	"beacon/internal/types"
)

// Subscription is a handle on a running continuous watch.
type Subscription interface {
	Stop()
}

// ContinuousSource starts a platform watch that emits samples filtered by
// the given interval/distance thresholds until the subscription stops.
type ContinuousSource interface {
	Subscribe(ctx context.Context, params TrackingParameters, onSample func(Sample), onError func(error)) (Subscription, error)
}

// Task is a handle on a registered recurring poll.
type Task interface {
	Cancel()
}

// PeriodicScheduler registers a recurring background callback.
type PeriodicScheduler interface {
	Register(interval time.Duration, fn func(ctx context.Context)) (Task, error)
}

// ProfileReader reports the agent's current operating mode. It is read on
// every periodic cycle, not cached at start, because availability can
// flip mid-session.
type ProfileReader interface {
	Mode(ctx context.Context, agentID types.ID) (OperatingMode, error)
}

// Controller is the state machine owning the watch and poll loops.
// Exactly one State value holds at any instant; transitions only happen
// through Start and Stop.
type Controller struct {
	pipeline   *Pipeline
	continuous ContinuousSource  // nil when the platform has no watch
	periodic   PeriodicScheduler // nil when background polling is unsupported
	profiles   ProfileReader     // nil falls back to the mode given to Start
	cfg        config.TrackingConfig
	log        *slog.Logger

	mu          sync.Mutex
	state       State
	agentID     types.ID
	mode        OperatingMode
	sessionID   string
	sub         Subscription
	task        Task
	lastSuccess time.Time
}

func NewController(pipeline *Pipeline, continuous ContinuousSource, periodic PeriodicScheduler, profiles ProfileReader, cfg config.TrackingConfig, log *slog.Logger) *Controller {
	return &Controller{
		pipeline:   pipeline,
		continuous: continuous,
		periodic:   periodic,
		profiles:   profiles,
		cfg:        cfg,
		log:        log,
		state:      StateStopped,
	}
}

// Start configures and activates tracking for the agent. If tracking is
// already running it is torn down first, so Start doubles as reconfigure.
// On failure the state is left at Stopped and the error is returned for
// the caller's permission flow.
func (c *Controller) Start(ctx context.Context, agentID types.ID, mode OperatingMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStopped {
		c.stopLocked()
	}
	if c.continuous == nil && c.periodic == nil {
		return ErrNoCapability
	}

	params := ParamsFor(mode, c.cfg)
	sessionID := uuid.NewString()

	// An in-flight attempt dispatched before Stop is allowed to finish;
	// the gate discards its result instead of cancelling it.
	runCtx := context.WithoutCancel(ctx)

	var sub Subscription
	if c.continuous != nil {
		s, err := c.continuous.Subscribe(runCtx, params,
			c.watchSampleFunc(runCtx, agentID, params.Tier),
			func(err error) {
				c.log.Warn("continuous watch error", "agent", agentID, "session", sessionID, "err", err)
			})
		if err != nil {
			return err
		}
		sub = s
	}

	var task Task
	if c.periodic != nil {
		t, err := c.periodic.Register(params.MinInterval, c.pollFunc(agentID, mode))
		if err != nil {
			if sub != nil {
				sub.Stop()
			}
			return err
		}
		task = t
	}

	c.agentID = agentID
	c.mode = mode
	c.sessionID = sessionID
	c.sub = sub
	c.task = task
	switch {
	case sub != nil && task != nil:
		c.state = StateBoth
	case sub != nil:
		c.state = StateForeground
	default:
		c.state = StateBackground
	}

	c.log.Info("tracking started",
		"agent", agentID, "session", sessionID, "mode", string(mode),
		"state", string(c.state), "tier", params.Tier.String(),
		"interval", params.MinInterval, "min_distance_m", params.MinDistanceM)
	return nil
}

// Stop cancels all active watches and timers. No-op when already stopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.state == StateStopped {
		return
	}
	if c.sub != nil {
		c.sub.Stop()
		c.sub = nil
	}
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	c.log.Info("tracking stopped", "agent", c.agentID, "session", c.sessionID)
	c.state = StateStopped
	c.sessionID = ""
}

// OnModeChanged reconfigures the loops with the new mode's parameters.
// The cached last-known location is untouched.
func (c *Controller) OnModeChanged(ctx context.Context, agentID types.ID, mode OperatingMode) error {
	return c.Start(ctx, agentID, mode)
}

func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateStopped
}

// Foreground reports whether a continuous watch is currently running,
// which is the context where a direct synchronous acquisition is allowed.
func (c *Controller) Foreground() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateForeground || c.state == StateBoth
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LastSuccess returns the timestamp of the most recent delivered update,
// or false if none has succeeded yet. Callers use this to surface
// staleness warnings; the controller itself never alerts.
func (c *Controller) LastSuccess() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSuccess.IsZero() {
		return time.Time{}, false
	}
	return c.lastSuccess, true
}

func (c *Controller) watchSampleFunc(ctx context.Context, agentID types.ID, tier AccuracyTier) func(Sample) {
	return func(s Sample) {
		out := c.pipeline.Deliver(ctx, agentID, s, tier, c.IsActive)
		c.record(agentID, out)
	}
}

// pollFunc runs the full pipeline on each background tick. The operating
// mode is re-read every cycle so an availability flip changes the
// acquisition tier before the next reconfigure.
func (c *Controller) pollFunc(agentID types.ID, startMode OperatingMode) func(ctx context.Context) {
	return func(ctx context.Context) {
		mode := startMode
		if c.profiles != nil {
			if m, err := c.profiles.Mode(ctx, agentID); err == nil {
				mode = m
			} else {
				c.log.Warn("profile read failed, using last known mode", "agent", agentID, "err", err)
			}
		}
		tier := ParamsFor(mode, c.cfg).Tier
		out := c.pipeline.Run(ctx, agentID, tier, c.IsActive)
		c.record(agentID, out)
	}
}

// record bookkeeps an invocation's outcome. Only a fresh delivery
// advances lastSuccess: a stale fallback keeps dispatch informed but is
// not a working acquisition path, and callers watching LastSuccess must
// still see the gap.
func (c *Controller) record(agentID types.ID, out Outcome) {
	switch out.Status {
	case OutcomeDelivered:
		c.mu.Lock()
		c.lastSuccess = time.Now()
		c.mu.Unlock()
	case OutcomeDeliveredStale:
		c.log.Warn("delivered cached fix, acquisition degraded",
			"agent", agentID, "tier", out.Tier.String(), "attempts", out.Attempts)
	case OutcomeFailed:
		c.log.Warn("pipeline invocation failed",
			"agent", agentID, "tier", out.Tier.String(), "attempts", out.Attempts, "err", out.Err)
	}
}
