package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Dekunlebells/okaygoal-sub001/internal/errors"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients carry tokens, not cookies; origin checks add
		// nothing here.
		return true
	},
}

// handleWebSocket admits a live-update connection: token first, then
// admission limits, then the upgrade. Everything after the upgrade
// belongs to the gateway.
func (s *Server) handleWebSocket(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		metrics.GatewaySessionsRejectedTotal.WithLabelValues("missing_token").Inc()
		return apperrors.UnauthorizedError("authentication required")
	}

	identity, err := s.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		metrics.GatewaySessionsRejectedTotal.WithLabelValues("invalid_token").Inc()
		return apperrors.FromDomain(err)
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.GatewaySessionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("websocket connection rejected", "ip", ip, "reason", string(reason))
		return apperrors.RateLimitedError("connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade failures write their own response.
		slog.Debug("websocket upgrade failed", "error", err)
		return nil
	}

	if err := s.gateway.Serve(c.Request().Context(), conn, identity); err != nil {
		slog.Debug("websocket session ended with error",
			"user_id", identity.UserID.String(), "error", err)
	}
	return nil
}
