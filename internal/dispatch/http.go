// README: HTTP transmitter posting location updates to the dispatch backend.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// HTTPTransmitter submits updates as flat JSON to the backend's location
// endpoint. Transmission errors are reported, never retried here; the
// pipeline prefers a fresh fix on the next trigger.
type HTTPTransmitter struct {
	client *http.Client
	url    string
	token  string
}

func NewHTTPTransmitter(url, token string) *HTTPTransmitter {
	return &HTTPTransmitter{
		client: &http.Client{Timeout: 15 * time.Second},
		url:    url,
		token:  token,
	}
}

type updatePayload struct {
	DriverID     string  `json:"driver_id"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	CapturedAtMs int64   `json:"captured_at_ms"`
}

func (t *HTTPTransmitter) Submit(ctx context.Context, agentID types.ID, s tracking.Sample) error {
	body, err := json.Marshal(updatePayload{
		DriverID:     string(agentID),
		Lat:          s.Point.Lat,
		Lng:          s.Point.Lng,
		CapturedAtMs: s.CapturedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch rejected update: %s", resp.Status)
	}
	return nil
}
