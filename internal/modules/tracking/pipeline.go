// README: Update pipeline: acquire, persist, transmit, with a bounded retry-and-degrade ladder.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"beacon/internal/config"
	"beacon/internal/types"
)

var (
	ErrPermissionDenied       = errors.New("position permission denied")
	ErrAcquisitionTimeout     = errors.New("position acquisition timed out")
	ErrAcquisitionUnavailable = errors.New("position unavailable")
	ErrTransmissionFailed     = errors.New("location transmission failed")
	ErrNoFallback             = errors.New("no cached location available")
	ErrNoCapability           = errors.New("no acquisition capability configured")
)

// PositionSource yields a single coordinate at the requested tier or fails.
type PositionSource interface {
	Acquire(ctx context.Context, tier AccuracyTier) (Sample, error)
}

// FallbackStore persists the most recent successfully acquired sample.
type FallbackStore interface {
	ReadLastKnown(ctx context.Context, agentID types.ID) (Sample, bool, error)
	SaveLastKnown(ctx context.Context, agentID types.ID, s Sample) error
}

// Transmitter sends a coordinate for an agent to the dispatch service.
type Transmitter interface {
	Submit(ctx context.Context, agentID types.ID, s Sample) error
}

// SnapshotSink records delivered fixes for history/replay.
type SnapshotSink interface {
	AppendSnapshot(ctx context.Context, snap Snapshot) error
}

// RoadSnapper adjusts a raw fix onto the road network.
type RoadSnapper interface {
	Snap(ctx context.Context, p types.Point) (types.Point, error)
}

// Pipeline is the single algorithm behind every acquisition trigger:
// watch callback, periodic tick, and immediate request.
type Pipeline struct {
	source      PositionSource
	store       FallbackStore
	transmitter Transmitter
	cfg         config.TrackingConfig
	log         *slog.Logger

	snapshots SnapshotSink // optional
	roads     RoadSnapper  // optional

	mu        sync.Mutex
	listeners []func(Sample)
}

func NewPipeline(source PositionSource, store FallbackStore, transmitter Transmitter, cfg config.TrackingConfig, log *slog.Logger) *Pipeline {
	return &Pipeline{
		source:      source,
		store:       store,
		transmitter: transmitter,
		cfg:         cfg,
		log:         log,
	}
}

// SetSnapshotSink enables history recording of delivered fixes.
func (p *Pipeline) SetSnapshotSink(sink SnapshotSink) { p.snapshots = sink }

// SetRoadSnapper enables road-snapping of fresh fixes before delivery.
func (p *Pipeline) SetRoadSnapper(rs RoadSnapper) { p.roads = rs }

// OnDelivered registers a listener invoked after every fresh delivery.
// The immediate-update coordinator uses this for early satisfaction.
func (p *Pipeline) OnDelivered(fn func(Sample)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Run executes one full invocation starting from tier. The retry budget
// and current tier are local to the invocation and never leak across
// calls. gate, if non-nil, is consulted immediately before transmission;
// a false gate discards the result.
func (p *Pipeline) Run(ctx context.Context, agentID types.ID, tier AccuracyTier, gate func() bool) Outcome {
	budget := p.cfg.RetryMax
	cur := tier
	attempts := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.BackoffBase
	bo.MaxInterval = p.cfg.BackoffCap
	bo.Multiplier = 2
	bo.Reset()

	for budget > 0 {
		attempts++
		acquireCtx, cancel := context.WithTimeout(ctx, TimeoutFor(cur, p.cfg))
		sample, err := p.source.Acquire(acquireCtx, cur)
		cancel()
		if err == nil {
			out := p.deliver(ctx, agentID, sample, cur, gate, false)
			out.Attempts = attempts
			return out
		}
		if errors.Is(err, ErrPermissionDenied) {
			// No tier will help; surface for remediation.
			return Outcome{Status: OutcomeFailed, Tier: cur, Attempts: attempts, Err: err}
		}

		budget--
		if budget == 0 {
			break
		}
		next := cur.Degrade()
		wait := bo.NextBackOff()
		p.log.Warn("acquisition failed, degrading",
			"agent", agentID, "tier", cur.String(), "next_tier", next.String(),
			"attempt", attempts, "backoff", wait, "err", err)
		cur = next
		select {
		case <-ctx.Done():
			return Outcome{Status: OutcomeFailed, Tier: cur, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}

	return p.fallback(ctx, agentID, cur, attempts, gate)
}

// Deliver feeds an already-acquired sample (from the continuous watch)
// through the persist-and-transmit half of the pipeline.
func (p *Pipeline) Deliver(ctx context.Context, agentID types.ID, sample Sample, tier AccuracyTier, gate func() bool) Outcome {
	out := p.deliver(ctx, agentID, sample, tier, gate, false)
	out.Attempts = 1
	return out
}

func (p *Pipeline) deliver(ctx context.Context, agentID types.ID, sample Sample, tier AccuracyTier, gate func() bool, stale bool) Outcome {
	if !stale {
		if p.roads != nil {
			if pt, err := p.roads.Snap(ctx, sample.Point); err == nil {
				sample.Point = pt
			} else {
				p.log.Debug("road snap failed, using raw fix", "agent", agentID, "err", err)
			}
		}
		// Persist before transmitting so the fix survives a failed send.
		// A write failure degrades to an un-refreshed cache, nothing more.
		if err := p.store.SaveLastKnown(ctx, agentID, sample); err != nil {
			p.log.Warn("fallback store write failed", "agent", agentID, "err", err)
		}
	}

	if gate != nil && !gate() {
		p.log.Debug("tracking stopped before transmit, discarding fix", "agent", agentID)
		return Outcome{Status: OutcomeDiscarded, Tier: tier, Sample: &sample}
	}

	if err := p.transmitter.Submit(ctx, agentID, sample); err != nil {
		// Not retried here: the next trigger acquires a fresh fix, which
		// beats re-sending this one.
		return Outcome{Status: OutcomeFailed, Tier: tier, Sample: &sample,
			Err: fmt.Errorf("%w: %v", ErrTransmissionFailed, err)}
	}

	if p.snapshots != nil {
		snap := Snapshot{
			AgentID:    agentID,
			Point:      sample.Point,
			Tier:       tier,
			Stale:      stale,
			CapturedAt: sample.CapturedAt,
			RecordedAt: time.Now(),
		}
		if err := p.snapshots.AppendSnapshot(ctx, snap); err != nil {
			p.log.Warn("snapshot append failed", "agent", agentID, "err", err)
		}
	}

	if stale {
		return Outcome{Status: OutcomeDeliveredStale, Tier: tier, Sample: &sample}
	}
	p.notifyDelivered(sample)
	return Outcome{Status: OutcomeDelivered, Tier: tier, Sample: &sample}
}

// fallback transmits the cached fix after the acquisition budget is
// exhausted. The cache is never rewritten from here, so LastKnownLocation
// stays real device output.
func (p *Pipeline) fallback(ctx context.Context, agentID types.ID, tier AccuracyTier, attempts int, gate func() bool) Outcome {
	cached, ok, err := p.store.ReadLastKnown(ctx, agentID)
	if err != nil {
		// A failed read means no fallback available.
		p.log.Warn("fallback store read failed", "agent", agentID, "err", err)
		ok = false
	}
	if !ok {
		return Outcome{Status: OutcomeFailed, Tier: tier, Attempts: attempts, Err: ErrNoFallback}
	}
	out := p.deliver(ctx, agentID, cached, tier, gate, true)
	out.Attempts = attempts
	return out
}

func (p *Pipeline) notifyDelivered(sample Sample) {
	p.mu.Lock()
	listeners := make([]func(Sample), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(sample)
	}
}
