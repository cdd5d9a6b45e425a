// README: Handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon/internal/modules/profile"
	"beacon/internal/modules/tracking"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeTrackingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracking.ErrPermissionDenied):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, tracking.ErrNoCapability),
		errors.Is(err, tracking.ErrAcquisitionUnavailable),
		errors.Is(err, tracking.ErrAcquisitionTimeout),
		errors.Is(err, tracking.ErrTransmissionFailed),
		errors.Is(err, tracking.ErrNoFallback):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, profile.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// requireDriver enforces the driver role claim. Returns false after
// writing the error response.
func requireDriver(c *gin.Context, callerRole string) bool {
	if callerRole != "driver" {
		writeError(c, http.StatusForbidden, "forbidden: driver role required")
		return false
	}
	return true
}

// requireSelf enforces that the authenticated driver acts only on their
// own agent id. Returns false after writing the error response.
func requireSelf(c *gin.Context, id, callerUID, callerRole string) bool {
	if !requireDriver(c, callerRole) {
		return false
	}
	if callerUID != id {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return false
	}
	return true
}
