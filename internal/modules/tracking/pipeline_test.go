// README: Unit tests for the update pipeline's retry-and-degrade ladder.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"beacon/internal/config"
	"beacon/internal/types"
)

func testCfg() config.TrackingConfig {
	return config.TrackingConfig{
		RetryMax:                3,
		BackoffBase:             time.Millisecond,
		BackoffCap:              2 * time.Millisecond,
		ImmediateDeadline:       100 * time.Millisecond,
		AcquireTimeoutHigh:      50 * time.Millisecond,
		AcquireTimeoutBalanced:  50 * time.Millisecond,
		AcquireTimeoutLow:       50 * time.Millisecond,
		AvailableInterval:       3 * time.Minute,
		AvailableMinDistanceM:   50,
		UnavailableInterval:     30 * time.Minute,
		UnavailableMinDistanceM: 500,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type acquireResult struct {
	sample Sample
	err    error
}

// fakeSource replays a script of acquisition results and records the tier
// of every attempt.
type fakeSource struct {
	mu     sync.Mutex
	script []acquireResult
	calls  []AccuracyTier
}

func (f *fakeSource) Acquire(_ context.Context, tier AccuracyTier) (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tier)
	if len(f.script) == 0 {
		return Sample{Point: types.Point{Lat: 25.033, Lng: 121.565}, CapturedAt: time.Now()}, nil
	}
	r := f.script[0]
	f.script = f.script[1:]
	return r.sample, r.err
}

func (f *fakeSource) tiers() []AccuracyTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AccuracyTier, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeStore struct {
	mu       sync.Mutex
	sample   *Sample
	saves    int
	readErr  error
	writeErr error
}

func (f *fakeStore) ReadLastKnown(_ context.Context, _ types.ID) (Sample, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return Sample{}, false, f.readErr
	}
	if f.sample == nil {
		return Sample{}, false, nil
	}
	return *f.sample, true, nil
}

func (f *fakeStore) SaveLastKnown(_ context.Context, _ types.ID, s Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.saves++
	if f.sample == nil || !s.CapturedAt.Before(f.sample.CapturedAt) {
		cp := s
		f.sample = &cp
	}
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeTransmitter struct {
	mu          sync.Mutex
	err         error
	submissions []Sample
}

func (f *fakeTransmitter) Submit(_ context.Context, _ types.ID, s Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submissions = append(f.submissions, s)
	return nil
}

func (f *fakeTransmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

func (f *fakeTransmitter) last() Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions[len(f.submissions)-1]
}

const testAgent = types.ID("driver_1")

func TestPipeline_FreshDelivery(t *testing.T) {
	source := &fakeSource{}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierBalanced, nil)
	if out.Status != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s (err=%v)", out.Status, out.Err)
	}
	if out.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.Attempts)
	}
	if out.Tier != TierBalanced {
		t.Errorf("expected balanced tier, got %s", out.Tier)
	}
	if store.saveCount() != 1 {
		t.Errorf("expected 1 fallback write, got %d", store.saveCount())
	}
	if tx.count() != 1 {
		t.Errorf("expected 1 transmission, got %d", tx.count())
	}
}

func TestPipeline_DegradesThenSucceedsAtLow(t *testing.T) {
	// Fails twice, succeeds on the third (Low) attempt within budget 3.
	source := &fakeSource{script: []acquireResult{
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionUnavailable},
		{sample: Sample{Point: types.Point{Lat: 25.0, Lng: 121.5}, CapturedAt: time.Now()}},
	}}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierHigh, nil)
	if out.Status != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s (err=%v)", out.Status, out.Err)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
	if out.Tier != TierLow {
		t.Errorf("expected delivery recorded at low tier, got %s", out.Tier)
	}
	want := []AccuracyTier{TierHigh, TierBalanced, TierLow}
	got := source.tiers()
	if len(got) != len(want) {
		t.Fatalf("expected %d acquisition attempts, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("attempt %d at tier %s, want %s", i+1, got[i], want[i])
		}
	}
	if store.saveCount() != 1 {
		t.Errorf("expected last-known update, got %d writes", store.saveCount())
	}
}

func TestPipeline_TierNeverMovesUpward(t *testing.T) {
	source := &fakeSource{script: []acquireResult{
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
	}}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	p.Run(context.Background(), testAgent, TierHigh, nil)

	tiers := source.tiers()
	if len(tiers) != testCfg().RetryMax {
		t.Fatalf("expected exactly %d attempts, got %d", testCfg().RetryMax, len(tiers))
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i] > tiers[i-1] {
			t.Errorf("tier moved upward: %s after %s", tiers[i], tiers[i-1])
		}
	}
}

func TestPipeline_FallbackTransmitsCachedWithoutRewrite(t *testing.T) {
	cachedAt := time.Now().Add(-10 * time.Minute)
	cached := Sample{Point: types.Point{Lat: 24.9, Lng: 121.2}, CapturedAt: cachedAt}
	source := &fakeSource{script: []acquireResult{
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
	}}
	store := &fakeStore{sample: &cached}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierHigh, nil)
	if out.Status != OutcomeDeliveredStale {
		t.Fatalf("expected stale delivery, got %s (err=%v)", out.Status, out.Err)
	}
	if tx.count() != 1 {
		t.Fatalf("expected 1 transmission, got %d", tx.count())
	}
	if got := tx.last(); !got.CapturedAt.Equal(cachedAt) {
		t.Errorf("transmitted sample timestamp %v, want cached %v", got.CapturedAt, cachedAt)
	}
	if store.saveCount() != 0 {
		t.Errorf("fallback delivery must not rewrite the cache, got %d writes", store.saveCount())
	}
}

func TestPipeline_HardFailureWithoutCache(t *testing.T) {
	source := &fakeSource{script: []acquireResult{
		{err: ErrAcquisitionUnavailable},
		{err: ErrAcquisitionUnavailable},
		{err: ErrAcquisitionUnavailable},
	}}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierHigh, nil)
	if out.Status != OutcomeFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if !errors.Is(out.Err, ErrNoFallback) {
		t.Errorf("expected ErrNoFallback, got %v", out.Err)
	}
	if tx.count() != 0 {
		t.Errorf("nothing should be transmitted, got %d", tx.count())
	}
}

func TestPipeline_FailedCacheReadMeansNoFallback(t *testing.T) {
	source := &fakeSource{script: []acquireResult{
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
	}}
	store := &fakeStore{readErr: errors.New("redis down")}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierHigh, nil)
	if out.Status != OutcomeFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if !errors.Is(out.Err, ErrNoFallback) {
		t.Errorf("expected ErrNoFallback, got %v", out.Err)
	}
}

func TestPipeline_TransmissionFailureNotRetried(t *testing.T) {
	source := &fakeSource{}
	store := &fakeStore{}
	tx := &fakeTransmitter{err: errors.New("dispatch 502")}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierBalanced, nil)
	if out.Status != OutcomeFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if !errors.Is(out.Err, ErrTransmissionFailed) {
		t.Errorf("expected ErrTransmissionFailed, got %v", out.Err)
	}
	if len(source.tiers()) != 1 {
		t.Errorf("transmission failure must not trigger re-acquisition, got %d attempts", len(source.tiers()))
	}
	// The fix was persisted before the failed send.
	if store.saveCount() != 1 {
		t.Errorf("expected the fresh fix persisted, got %d writes", store.saveCount())
	}
}

func TestPipeline_PermissionDeniedSurfacesImmediately(t *testing.T) {
	source := &fakeSource{script: []acquireResult{{err: ErrPermissionDenied}}}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierHigh, nil)
	if out.Status != OutcomeFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	if !errors.Is(out.Err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", out.Err)
	}
	if len(source.tiers()) != 1 {
		t.Errorf("permission denial must not be retried, got %d attempts", len(source.tiers()))
	}
}

func TestPipeline_GateDiscardsAfterStop(t *testing.T) {
	source := &fakeSource{}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	out := p.Run(context.Background(), testAgent, TierBalanced, func() bool { return false })
	if out.Status != OutcomeDiscarded {
		t.Fatalf("expected discarded, got %s", out.Status)
	}
	if tx.count() != 0 {
		t.Errorf("discarded result must not be transmitted, got %d", tx.count())
	}
	// The real fix is still persisted; only transmission is gated.
	if store.saveCount() != 1 {
		t.Errorf("expected fix persisted before gate, got %d writes", store.saveCount())
	}
}

func TestPipeline_InvocationsIndependent(t *testing.T) {
	// A fully failed invocation must not taint the next one.
	source := &fakeSource{script: []acquireResult{
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
		{err: ErrAcquisitionTimeout},
	}}
	store := &fakeStore{}
	tx := &fakeTransmitter{}
	p := NewPipeline(source, store, tx, testCfg(), testLogger())

	if out := p.Run(context.Background(), testAgent, TierHigh, nil); out.Status != OutcomeFailed {
		t.Fatalf("expected first invocation to fail, got %s", out.Status)
	}
	out := p.Run(context.Background(), testAgent, TierHigh, nil)
	if out.Status != OutcomeDelivered {
		t.Fatalf("expected second invocation to deliver, got %s", out.Status)
	}
	// Second invocation started back at the requested tier.
	tiers := source.tiers()
	if tiers[len(tiers)-1] != TierHigh {
		t.Errorf("second invocation started at %s, want high", tiers[len(tiers)-1])
	}
}
