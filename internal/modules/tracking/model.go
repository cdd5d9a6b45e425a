// README: Tracking domain model: accuracy tiers, operating modes, samples, states, outcomes.
package tracking

import (
	"time"

	"beacon/internal/types"
)

// AccuracyTier is the discrete quality level requested from the position
// source. Higher tiers are more precise and cost more battery.
type AccuracyTier int

const (
	TierLow AccuracyTier = iota
	TierBalanced
	TierHigh
)

func (t AccuracyTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierBalanced:
		return "balanced"
	default:
		return "low"
	}
}

// Degrade returns the next tier down the ladder. Low stays Low.
func (t AccuracyTier) Degrade() AccuracyTier {
	if t > TierLow {
		return t - 1
	}
	return TierLow
}

// OperatingMode is whether the agent is actively soliciting work.
type OperatingMode string

const (
	ModeAvailable   OperatingMode = "available"
	ModeUnavailable OperatingMode = "unavailable"
)

// ModeFor converts the persisted availability flag to a mode.
func ModeFor(available bool) OperatingMode {
	if available {
		return ModeAvailable
	}
	return ModeUnavailable
}

// TrackingParameters are derived per operating mode, never stored.
type TrackingParameters struct {
	Tier         AccuracyTier
	MinInterval  time.Duration
	MinDistanceM float64
}

// Sample is a position produced by the device or read back from the
// fallback store. It is never synthesized.
type Sample struct {
	Point      types.Point
	CapturedAt time.Time
}

// Snapshot is an append-only history row recorded for every delivered fix.
type Snapshot struct {
	ID         int64
	AgentID    types.ID
	Point      types.Point
	Tier       AccuracyTier
	Stale      bool
	CapturedAt time.Time
	RecordedAt time.Time
}

// State is which acquisition loops are currently active.
type State string

const (
	StateStopped    State = "stopped"
	StateForeground State = "foreground"
	StateBackground State = "background"
	StateBoth       State = "both"
)

// OutcomeStatus classifies a single pipeline invocation.
type OutcomeStatus string

const (
	// OutcomeDelivered: a fresh fix was acquired and transmitted.
	OutcomeDelivered OutcomeStatus = "delivered"
	// OutcomeDeliveredStale: acquisition exhausted its budget and the
	// cached fix was transmitted instead. Partial success, not an error.
	OutcomeDeliveredStale OutcomeStatus = "delivered_stale"
	// OutcomeDiscarded: a fix was acquired but tracking had stopped
	// before transmission, so the result was dropped.
	OutcomeDiscarded OutcomeStatus = "discarded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the result of one pipeline invocation.
type Outcome struct {
	Status   OutcomeStatus
	Tier     AccuracyTier
	Sample   *Sample
	Attempts int
	Err      error
}

// OK reports whether the invocation delivered data, fresh or stale.
func (o Outcome) OK() bool {
	return o.Status == OutcomeDelivered || o.Status == OutcomeDeliveredStale
}
