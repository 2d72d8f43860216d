package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	apperrors "github.com/Dekunlebells/okaygoal-sub001/internal/errors"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
)

// TierRates maps each subscription tier to its sustained request rate.
type TierRates struct {
	Anonymous float64
	Basic     float64
	Premium   float64
	Burst     int
}

// TierLimiter applies per-caller token buckets sized by subscription
// tier. Anonymous callers are keyed by IP, authenticated ones by user ID,
// so a shared NAT does not burn one user's budget.
type TierLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateLimiterEntry
	rates     TierRates
	cleanupAt time.Time
}

func NewTierLimiter(rates TierRates) *TierLimiter {
	return &TierLimiter{
		buckets:   make(map[string]*rateLimiterEntry),
		rates:     rates,
		cleanupAt: time.Now().Add(5 * time.Minute),
	}
}

func (l *TierLimiter) limitFor(tier domain.SubscriptionTier) rate.Limit {
	switch tier {
	case domain.TierPremium:
		return rate.Limit(l.rates.Premium)
	case domain.TierBasic:
		return rate.Limit(l.rates.Basic)
	default:
		return rate.Limit(l.rates.Anonymous)
	}
}

// Allow reports whether the caller may proceed, and the wait until the
// next token when it may not.
func (l *TierLimiter) Allow(key string, tier domain.SubscriptionTier) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		l.cleanup()
		l.cleanupAt = time.Now().Add(5 * time.Minute)
	}

	entry, exists := l.buckets[key]
	if !exists {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(l.limitFor(tier), l.rates.Burst),
		}
		l.buckets[key] = entry
	}
	entry.lastSeen = time.Now()

	reservation := entry.limiter.Reserve()
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

// cleanup removes buckets idle for 10 minutes. Caller holds mu.
func (l *TierLimiter) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for key, entry := range l.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// rateLimitMiddleware enforces the tier budget on API routes. Runs after
// the auth middleware so the identity, if any, is already resolved.
func (s *Server) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, authenticated := identityFrom(c)

		key := "ip:" + c.RealIP()
		tier := domain.TierAnonymous
		if authenticated {
			key = "user:" + identity.UserID.String()
			tier = identity.Tier
		}

		ok, retryAfter := s.tierLimiter.Allow(key, tier)
		if !ok {
			metrics.RateLimitRejectionsTotal.WithLabelValues(string(tier)).Inc()
			seconds := int(retryAfter.Seconds()) + 1
			c.Response().Header().Set("Retry-After", fmt.Sprint(seconds))
			return apperrors.RateLimitedError("request rate exceeded for tier " + string(tier))
		}

		return next(c)
	}
}
