// README: Control API; registers routes and delegates to module services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon/internal/http/handlers"
	"beacon/internal/http/middleware"
	"beacon/internal/infra"
)

type ServerDeps struct {
	Control   handlers.TrackingControl
	Immediate handlers.ImmediateRequester
	Modes     handlers.ModeReader
	LastKnown handlers.LastKnownReader
	Profiles  handlers.ProfileService
	Changer   handlers.ModeChanger
	Verifier  infra.TokenVerifier
	Log       *slog.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(s.deps.Log))
	r.Use(middleware.Recovery(s.deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(s.deps.Verifier))

	th := handlers.NewTrackingHandler(s.deps.Control, s.deps.Immediate, s.deps.Modes, s.deps.LastKnown)
	api.POST("/tracking/start", th.Start)
	api.POST("/tracking/stop", th.Stop)
	api.GET("/tracking/status", th.Status)
	api.POST("/tracking/update-now", th.UpdateNow)

	ah := handlers.NewAgentHandler(s.deps.Profiles, s.deps.Changer)
	api.GET("/agents/:id", ah.Get)
	api.PUT("/agents/:id/availability", ah.SetAvailability)
	api.PUT("/agents/:id/device-token", ah.SetDeviceToken)

	return r
}
