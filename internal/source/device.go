// README: Position source backed by the device gateway's local fix endpoint.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// DeviceSource queries the paired device gateway for a single fix at the
// requested accuracy. The per-attempt timeout is the caller's context
// deadline; the gateway itself aborts a fix it cannot produce in time.
type DeviceSource struct {
	client  *http.Client
	baseURL string
}

func NewDeviceSource(baseURL string) *DeviceSource {
	return &DeviceSource{
		client:  &http.Client{},
		baseURL: baseURL,
	}
}

type fixResponse struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	TsMs      int64   `json:"ts_ms"`
	AccuracyM float64 `json:"accuracy_m"`
}

func (d *DeviceSource) Acquire(ctx context.Context, tier tracking.AccuracyTier) (tracking.Sample, error) {
	url := fmt.Sprintf("%s/fix?accuracy=%s", d.baseURL, tier.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tracking.Sample{}, fmt.Errorf("build fix request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return tracking.Sample{}, fmt.Errorf("%w: %v", tracking.ErrAcquisitionTimeout, err)
		}
		return tracking.Sample{}, fmt.Errorf("%w: %v", tracking.ErrAcquisitionUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return tracking.Sample{}, fmt.Errorf("%w: gateway returned %s", tracking.ErrPermissionDenied, resp.Status)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return tracking.Sample{}, fmt.Errorf("%w: gateway returned %s", tracking.ErrAcquisitionTimeout, resp.Status)
	default:
		return tracking.Sample{}, fmt.Errorf("%w: gateway returned %s", tracking.ErrAcquisitionUnavailable, resp.Status)
	}

	var fix fixResponse
	if err := json.NewDecoder(resp.Body).Decode(&fix); err != nil {
		return tracking.Sample{}, fmt.Errorf("%w: decode fix: %v", tracking.ErrAcquisitionUnavailable, err)
	}

	capturedAt := time.UnixMilli(fix.TsMs)
	if fix.TsMs == 0 {
		capturedAt = time.Now()
	}
	return tracking.Sample{
		Point:      types.Point{Lat: fix.Lat, Lng: fix.Lng},
		CapturedAt: capturedAt,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
