// README: Continuous watch: polls the position source and emits distance-filtered samples.
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon/internal/config"
	"beacon/internal/geo"
	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// PollingWatch implements tracking.ContinuousSource on platforms without
// a push-style position watch: it samples at the configured interval and
// only emits fixes that moved at least MinDistanceM since the last one.
type PollingWatch struct {
	source tracking.PositionSource
	cfg    config.TrackingConfig
	log    *slog.Logger
}

func NewPollingWatch(source tracking.PositionSource, cfg config.TrackingConfig, log *slog.Logger) *PollingWatch {
	return &PollingWatch{source: source, cfg: cfg, log: log}
}

func (w *PollingWatch) Subscribe(ctx context.Context, params tracking.TrackingParameters, onSample func(tracking.Sample), onError func(error)) (tracking.Subscription, error) {
	sub := &pollSubscription{stop: make(chan struct{})}
	go w.run(ctx, params, onSample, onError, sub.stop)
	return sub, nil
}

func (w *PollingWatch) run(ctx context.Context, params tracking.TrackingParameters, onSample func(tracking.Sample), onError func(error), stop <-chan struct{}) {
	ticker := time.NewTicker(params.MinInterval)
	defer ticker.Stop()

	var last *types.Point
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			acquireCtx, cancel := context.WithTimeout(ctx, tracking.TimeoutFor(params.Tier, w.cfg))
			sample, err := w.source.Acquire(acquireCtx, params.Tier)
			cancel()
			if err != nil {
				onError(err)
				continue
			}
			if last != nil && geo.HaversineMeters(*last, sample.Point) < params.MinDistanceM {
				w.log.Debug("fix below distance threshold, skipping",
					"min_distance_m", params.MinDistanceM)
				continue
			}
			p := sample.Point
			last = &p
			onSample(sample)
		}
	}
}

type pollSubscription struct {
	once sync.Once
	stop chan struct{}
}

func (s *pollSubscription) Stop() {
	s.once.Do(func() { close(s.stop) })
}
