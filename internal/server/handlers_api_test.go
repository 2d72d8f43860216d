package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

func doRequest(env *testServerEnv, method, path, token string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleMatches_ListByFilter(t *testing.T) {
	env := newTestServer(t)
	env.matches.lists = map[domain.MatchFilter][]domain.MatchState{
		domain.FilterLive: {
			{MatchID: 1, HomeTeam: "Arsenal", AwayTeam: "Spurs", Status: domain.StatusLive, MatchDate: time.Now()},
		},
	}

	rec := doRequest(env, http.MethodGet, "/api/matches/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.MatchListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, int64(1), resp.Matches[0].MatchID)
}

func TestHandleMatches_EmptyListIsNotNull(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/api/matches/upcoming", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())
}

func TestHandleMatches_Detail(t *testing.T) {
	env := newTestServer(t)
	env.matches.details = map[int64]*domain.MatchState{
		42: {MatchID: 42, HomeTeam: "Milan", AwayTeam: "Inter", Status: domain.StatusLive},
	}
	env.matches.events = map[int64][]domain.MatchEvent{
		42: {{MatchID: 42, Type: domain.EventGoal, TimeMinute: 56}},
	}

	rec := doRequest(env, http.MethodGet, "/api/matches/42", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.MatchDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Match.MatchID)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, domain.EventGoal, resp.Events[0].Type)
}

func TestHandleMatches_DetailNotFound(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/api/matches/999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMatches_UnknownFilter(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/api/matches/yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferences_RequireAuth(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/api/preferences", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(env, http.MethodPut, "/api/preferences", "", `{"favorite_team_ids":[3]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPreferences_RoundTrip(t *testing.T) {
	env := newTestServer(t)
	env.verifier.add("basic-token", domain.TierBasic)

	put := doRequest(env, http.MethodPut, "/api/preferences", "basic-token",
		`{"favorite_team_ids":[3,14],"notify_goals":true,"notify_kickoff":true}`)
	require.Equal(t, http.StatusOK, put.Code)

	get := doRequest(env, http.MethodGet, "/api/preferences", "basic-token", "")
	require.Equal(t, http.StatusOK, get.Code)

	var prefs domain.Preferences
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &prefs))
	assert.Equal(t, []int64{3, 14}, prefs.FavoriteTeamIDs)
	assert.True(t, prefs.NotifyKickoff)
}

func TestAPI_InvalidTokenRejected(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/api/matches/live", "forged-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
