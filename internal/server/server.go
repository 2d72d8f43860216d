// Package server exposes the HTTP surface: the REST API used for
// resyncs, the websocket endpoint, and the observability endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Dekunlebells/okaygoal-sub001/internal/config"
	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	apperrors "github.com/Dekunlebells/okaygoal-sub001/internal/errors"
	"github.com/Dekunlebells/okaygoal-sub001/internal/gateway"
)

const identityContextKey = "identity"

// healthChecker is the minimal dependency health probe.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	gateway     *gateway.Gateway
	verifier    domain.TokenVerifier
	matches     domain.MatchRepository
	prefs       domain.PreferenceRepository
	db          healthChecker
	redis       redisPinger
	limits      *ConnectionLimits
	tierLimiter *TierLimiter
	startTime   time.Time
}

func NewServer(
	cfg *config.Config,
	gw *gateway.Gateway,
	verifier domain.TokenVerifier,
	matches domain.MatchRepository,
	prefs domain.PreferenceRepository,
	db healthChecker,
	redis redisPinger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:     e,
		config:   cfg,
		gateway:  gw,
		verifier: verifier,
		matches:  matches,
		prefs:    prefs,
		db:       db,
		redis:    redis,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			50,   // concurrent sockets per IP
			10.0, // connection attempts per second per IP
			10,
		),
		tierLimiter: NewTierLimiter(TierRates{
			Anonymous: cfg.RateLimitAnonymous,
			Basic:     cfg.RateLimitBasic,
			Premium:   cfg.RateLimitPremium,
			Burst:     cfg.RateLimitBurst,
		}),
		startTime: time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// --- Authentication middleware ---

// optionalAuth resolves a bearer token when one is presented. A request
// without a token proceeds anonymously; a request with a bad token fails.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return next(c)
		}

		identity, err := s.verifier.Verify(c.Request().Context(), token)
		if err != nil {
			return apperrors.FromDomain(err)
		}

		c.Set(identityContextKey, identity)
		return next(c)
	}
}

// requireAuth rejects requests that did not authenticate.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := identityFrom(c); !ok {
			return apperrors.UnauthorizedError("authentication required")
		}
		return next(c)
	}
}

func identityFrom(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(identityContextKey).(domain.Identity)
	return identity, ok
}

// bearerToken extracts the token from the Authorization header, falling
// back to the query string for websocket clients that cannot set headers.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return c.QueryParam("token")
}
