package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	apperrors "github.com/Dekunlebells/okaygoal-sub001/internal/errors"
)

// handleMatches serves both list and detail reads. A numeric key is a
// match ID, anything else must be one of the list filters.
func (s *Server) handleMatches(c echo.Context) error {
	key := c.Param("key")

	if matchID, err := strconv.ParseInt(key, 10, 64); err == nil {
		return s.matchDetail(c, matchID)
	}

	filter := domain.MatchFilter(key)
	if !filter.Valid() {
		return apperrors.ValidationError("unknown match filter or id: " + key)
	}

	matches, err := s.matches.ListByFilter(c.Request().Context(), filter)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	if matches == nil {
		matches = []domain.MatchState{}
	}
	return c.JSON(http.StatusOK, domain.MatchListResponse{Matches: matches})
}

func (s *Server) matchDetail(c echo.Context, matchID int64) error {
	match, events, err := s.matches.GetWithEvents(c.Request().Context(), matchID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	if events == nil {
		events = []domain.MatchEvent{}
	}
	return c.JSON(http.StatusOK, domain.MatchDetailResponse{Match: *match, Events: events})
}

func (s *Server) handleGetPreferences(c echo.Context) error {
	identity, _ := identityFrom(c)

	prefs, err := s.prefs.Get(c.Request().Context(), identity.UserID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(c echo.Context) error {
	identity, _ := identityFrom(c)

	var prefs domain.Preferences
	if err := c.Bind(&prefs); err != nil {
		return apperrors.ValidationError("invalid preferences payload")
	}

	if err := s.prefs.Put(c.Request().Context(), identity.UserID, prefs); err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, prefs)
}
