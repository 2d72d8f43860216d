package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

func TestTierLimiter_PremiumOutlastsAnonymous(t *testing.T) {
	limiter := NewTierLimiter(TierRates{Anonymous: 1, Basic: 5, Premium: 50, Burst: 2})

	anonAllowed := 0
	for range 10 {
		if ok, _ := limiter.Allow("ip:1.2.3.4", domain.TierAnonymous); ok {
			anonAllowed++
		}
	}

	premiumAllowed := 0
	for range 10 {
		if ok, _ := limiter.Allow("user:abc", domain.TierPremium); ok {
			premiumAllowed++
		}
	}

	assert.Equal(t, 2, anonAllowed, "anonymous burns its burst and stops")
	assert.Greater(t, premiumAllowed, anonAllowed)
}

func TestTierLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewTierLimiter(TierRates{Anonymous: 1, Basic: 1, Premium: 1, Burst: 1})

	ok1, _ := limiter.Allow("user:a", domain.TierBasic)
	ok2, _ := limiter.Allow("user:b", domain.TierBasic)

	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestTierLimiter_ReportsRetryDelay(t *testing.T) {
	limiter := NewTierLimiter(TierRates{Anonymous: 1, Basic: 1, Premium: 1, Burst: 1})

	ok, _ := limiter.Allow("user:a", domain.TierBasic)
	require.True(t, ok)

	ok, delay := limiter.Allow("user:a", domain.TierBasic)
	require.False(t, ok)
	assert.Positive(t, delay)
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	env := newTestServer(t)
	env.srv.tierLimiter = NewTierLimiter(TierRates{Anonymous: 1, Basic: 1, Premium: 1, Burst: 1})

	first := doRequest(env, http.MethodGet, "/api/matches/live", "", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(env, http.MethodGet, "/api/matches/live", "", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_AuthenticatedUsersNotKeyedByIP(t *testing.T) {
	env := newTestServer(t)
	env.srv.tierLimiter = NewTierLimiter(TierRates{Anonymous: 1, Basic: 10, Premium: 10, Burst: 1})
	env.verifier.add("user-token", domain.TierBasic)

	// Anonymous request burns the IP bucket.
	first := doRequest(env, http.MethodGet, "/api/matches/live", "", "")
	require.Equal(t, http.StatusOK, first.Code)
	second := doRequest(env, http.MethodGet, "/api/matches/live", "", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	// The authenticated user from the same IP has their own bucket.
	authed := doRequest(env, http.MethodGet, "/api/matches/live", "user-token", "")
	assert.Equal(t, http.StatusOK, authed.Code)
}
