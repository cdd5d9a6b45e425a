// README: Firebase RTDB transmitter mirroring driver locations for realtime consumers.
package dispatch

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/db"

	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// rtdbDriverEntry mirrors a single driver entry stored in Firebase RTDB
// under the /driver_locations node; the backend reads the same shape.
type rtdbDriverEntry struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
}

// RTDBTransmitter writes each update to driver_locations/{agentID} so
// realtime listeners (matching, friend tracking) see it without polling
// the backend.
type RTDBTransmitter struct {
	client *db.Client
}

func NewRTDBTransmitter(client *db.Client) *RTDBTransmitter {
	return &RTDBTransmitter{client: client}
}

func (t *RTDBTransmitter) Submit(ctx context.Context, agentID types.ID, s tracking.Sample) error {
	ref := t.client.NewRef("driver_locations/" + string(agentID))
	entry := rtdbDriverEntry{
		Lat:       s.Point.Lat,
		Lng:       s.Point.Lng,
		Status:    "online",
		Timestamp: s.CapturedAt.UnixMilli(),
	}
	if err := ref.Set(ctx, entry); err != nil {
		return fmt.Errorf("rtdb set %s: %w", ref.Path, err)
	}
	return nil
}
