package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// REST API. Match reads are open to anonymous callers; rate limits
	// scale with the resolved tier.
	api := s.echo.Group("/api", s.optionalAuth, s.rateLimitMiddleware)
	api.GET("/matches/:key", s.handleMatches)
	api.GET("/preferences", s.handleGetPreferences, s.requireAuth)
	api.PUT("/preferences", s.handlePutPreferences, s.requireAuth)

	// Websocket endpoint. Token checked before the upgrade.
	s.echo.GET("/ws/live", s.handleWebSocket)
}
