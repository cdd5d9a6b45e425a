// README: Periodic scheduler backed by time.Ticker.
package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"beacon/internal/modules/tracking"
)

// TickerScheduler implements tracking.PeriodicScheduler with an
// in-process ticker goroutine per registered task.
type TickerScheduler struct{}

func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

func (s *TickerScheduler) Register(interval time.Duration, fn func(ctx context.Context)) (tracking.Task, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return &tickerTask{cancel: cancel}, nil
}

type tickerTask struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (t *tickerTask) Cancel() {
	t.once.Do(t.cancel)
}
