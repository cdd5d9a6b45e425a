// README: Fan-out transmitter combining the HTTP API and the RTDB mirror.
package dispatch

import (
	"context"
	"errors"

	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// Multi submits to every backend. The update counts as transmitted only
// if all backends accept it; a partial write still returns the error so
// the pipeline records the invocation as failed and the next trigger
// re-converges both sides.
type Multi struct {
	backends []tracking.Transmitter
}

func NewMulti(backends ...tracking.Transmitter) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Submit(ctx context.Context, agentID types.ID, s tracking.Sample) error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Submit(ctx, agentID, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
