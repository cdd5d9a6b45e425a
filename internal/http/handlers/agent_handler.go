// README: Agent profile and availability handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beacon/internal/http/middleware"
	"beacon/internal/modules/profile"
	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

// ProfileService is the profile surface the handlers need.
type ProfileService interface {
	Get(ctx context.Context, agentID types.ID) (profile.Profile, error)
	SetAvailability(ctx context.Context, agentID types.ID, available bool) (profile.Profile, error)
	SetDeviceToken(ctx context.Context, agentID types.ID, token string) (profile.Profile, error)
}

// ModeChanger reconfigures a running tracking session when the agent's
// availability flips.
type ModeChanger interface {
	IsActive() bool
	OnModeChanged(ctx context.Context, agentID types.ID, mode tracking.OperatingMode) error
}

type AgentHandler struct {
	profiles ProfileService
	modes    ModeChanger
}

func NewAgentHandler(profiles ProfileService, modes ModeChanger) *AgentHandler {
	return &AgentHandler{profiles: profiles, modes: modes}
}

type profilePayload struct {
	AgentID   types.ID `json:"agent_id"`
	Available bool     `json:"available"`
	UpdatedAt string   `json:"updated_at"`
}

func toProfilePayload(p profile.Profile) profilePayload {
	return profilePayload{
		AgentID:   p.AgentID,
		Available: p.Available,
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AgentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}
	if !requireSelf(c, id, middleware.CallerUID(c), middleware.CallerRole(c)) {
		return
	}

	p, err := h.profiles.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toProfilePayload(p))
}

type setAvailabilityRequest struct {
	Available *bool `json:"available"`
}

// SetAvailability flips the agent between available and unavailable.
// A live tracking session is reconfigured to the matching cadence
// without interrupting the cached last-known location.
func (h *AgentHandler) SetAvailability(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}
	if !requireSelf(c, id, middleware.CallerUID(c), middleware.CallerRole(c)) {
		return
	}

	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		writeError(c, http.StatusBadRequest, "body must include available")
		return
	}

	p, err := h.profiles.SetAvailability(c.Request.Context(), types.ID(id), *req.Available)
	if err != nil {
		writeTrackingError(c, err)
		return
	}

	if h.modes.IsActive() {
		mode := tracking.ModeFor(p.Available)
		if err := h.modes.OnModeChanged(c.Request.Context(), types.ID(id), mode); err != nil {
			writeTrackingError(c, err)
			return
		}
	}
	writeJSON(c, http.StatusOK, toProfilePayload(p))
}

type setDeviceTokenRequest struct {
	DeviceToken string `json:"device_token"`
}

// SetDeviceToken stores the push token the backend uses to reach this
// agent's device.
func (h *AgentHandler) SetDeviceToken(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}
	if !requireSelf(c, id, middleware.CallerUID(c), middleware.CallerRole(c)) {
		return
	}

	var req setDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceToken == "" {
		writeError(c, http.StatusBadRequest, "body must include device_token")
		return
	}

	p, err := h.profiles.SetDeviceToken(c.Request.Context(), types.ID(id), req.DeviceToken)
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toProfilePayload(p))
}
