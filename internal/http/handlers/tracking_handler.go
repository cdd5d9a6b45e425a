// README: Tracking lifecycle and immediate-update handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beacon/internal/http/middleware"
	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// TrackingControl is the controller surface the handlers need.
type TrackingControl interface {
	Start(ctx context.Context, agentID types.ID, mode tracking.OperatingMode) error
	Stop()
	IsActive() bool
	State() tracking.State
	SessionID() string
	LastSuccess() (time.Time, bool)
}

// ImmediateRequester triggers a one-off out-of-cadence update.
type ImmediateRequester interface {
	RequestImmediateUpdate(ctx context.Context, agentID types.ID) (bool, error)
}

// ModeReader reports the agent's persisted operating mode.
type ModeReader interface {
	Mode(ctx context.Context, agentID types.ID) (tracking.OperatingMode, error)
}

// LastKnownReader exposes the cached last-known fix for status reporting.
type LastKnownReader interface {
	ReadLastKnown(ctx context.Context, agentID types.ID) (tracking.Sample, bool, error)
}

type TrackingHandler struct {
	control   TrackingControl
	immediate ImmediateRequester
	modes     ModeReader
	lastKnown LastKnownReader
}

func NewTrackingHandler(control TrackingControl, immediate ImmediateRequester, modes ModeReader, lastKnown LastKnownReader) *TrackingHandler {
	return &TrackingHandler{
		control:   control,
		immediate: immediate,
		modes:     modes,
		lastKnown: lastKnown,
	}
}

// Start begins a tracking session for the authenticated driver, with
// the cadence chosen by their persisted availability.
func (h *TrackingHandler) Start(c *gin.Context) {
	id := middleware.CallerUID(c)
	if !requireDriver(c, middleware.CallerRole(c)) {
		return
	}

	mode, err := h.modes.Mode(c.Request.Context(), types.ID(id))
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	if err := h.control.Start(c.Request.Context(), types.ID(id), mode); err != nil {
		writeTrackingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"session_id": h.control.SessionID(),
		"state":      h.control.State(),
		"mode":       mode,
	})
}

// Stop ends the current tracking session. Stopping when already
// stopped is a no-op, not an error.
func (h *TrackingHandler) Stop(c *gin.Context) {
	if !requireDriver(c, middleware.CallerRole(c)) {
		return
	}
	h.control.Stop()
	writeJSON(c, http.StatusOK, gin.H{"state": tracking.StateStopped})
}

type statusResponse struct {
	Active      bool              `json:"active"`
	State       tracking.State    `json:"state"`
	SessionID   string            `json:"session_id,omitempty"`
	LastSuccess string            `json:"last_success,omitempty"`
	LastKnown   *lastKnownPayload `json:"last_known,omitempty"`
}

type lastKnownPayload struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	CapturedAt string  `json:"captured_at"`
}

// Status reports the session state plus the cached last-known fix.
func (h *TrackingHandler) Status(c *gin.Context) {
	id := middleware.CallerUID(c)
	if !requireDriver(c, middleware.CallerRole(c)) {
		return
	}

	resp := statusResponse{
		Active:    h.control.IsActive(),
		State:     h.control.State(),
		SessionID: h.control.SessionID(),
	}
	if ts, ok := h.control.LastSuccess(); ok {
		resp.LastSuccess = ts.UTC().Format(time.RFC3339)
	}
	if sample, ok, err := h.lastKnown.ReadLastKnown(c.Request.Context(), types.ID(id)); err == nil && ok {
		resp.LastKnown = &lastKnownPayload{
			Lat:        sample.Point.Lat,
			Lng:        sample.Point.Lng,
			CapturedAt: sample.CapturedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

// UpdateNow requests a location update outside the normal cadence.
// 200 means an update was delivered during this call; 202 means the
// request is queued and a fresh fix will follow; errors map to their
// usual statuses (permission 403, exhausted paths 503).
func (h *TrackingHandler) UpdateNow(c *gin.Context) {
	id := middleware.CallerUID(c)
	if !requireDriver(c, middleware.CallerRole(c)) {
		return
	}

	queued, err := h.immediate.RequestImmediateUpdate(c.Request.Context(), types.ID(id))
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	if queued {
		writeJSON(c, http.StatusAccepted, gin.H{"status": "queued"})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "delivered"})
}
