package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

func TestVerify_ValidToken(t *testing.T) {
	userID := uuid.New()
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/verify", r.URL.Path)
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(verifyResponse{
			UserID:    userID.String(),
			Tier:      "premium",
			ExpiresAt: expiry,
		})
	}))
	defer server.Close()

	identity, err := NewHTTPVerifier(server.URL).Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, domain.TierPremium, identity.Tier)
	assert.True(t, identity.Expiry.Equal(expiry))
}

func TestVerify_RejectedToken(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewHTTPVerifier(server.URL).Verify(context.Background(), "bad-token")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		server.Close()
	}
}

func TestVerify_ServiceOutageIsNotAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPVerifier(server.URL).Verify(context.Background(), "any-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_UnknownTierDowngradesToAnonymous(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(verifyResponse{
			UserID: uuid.NewString(),
			Tier:   "platinum",
		})
	}))
	defer server.Close()

	identity, err := NewHTTPVerifier(server.URL).Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, domain.TierAnonymous, identity.Tier)
}
