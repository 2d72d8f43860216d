package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLiveness(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/health/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleReadiness_AllHealthy(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleReadiness_DependencyDown(t *testing.T) {
	tests := []struct {
		name   string
		induce func(*testServerEnv)
		check  string
	}{
		{"postgres down", func(env *testServerEnv) { env.db.err = assert.AnError }, "postgres"},
		{"redis down", func(env *testServerEnv) { env.redis.err = assert.AnError }, "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t)
			tt.induce(env)

			rec := doRequest(env, http.MethodGet, "/health/ready", "", "")
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.check, body["failed_check"])
		})
	}
}

func TestHandleVersion(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(env, http.MethodGet, "/version", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["go_version"])
}
