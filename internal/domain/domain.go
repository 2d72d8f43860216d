package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MatchFilter selects one of the four client-facing match lists.
type MatchFilter string

const (
	FilterLive     MatchFilter = "live"
	FilterToday    MatchFilter = "today"
	FilterUpcoming MatchFilter = "upcoming"
	FilterRecent   MatchFilter = "recent"
)

// Valid reports whether f is a known filter.
func (f MatchFilter) Valid() bool {
	switch f {
	case FilterLive, FilterToday, FilterUpcoming, FilterRecent:
		return true
	}
	return false
}

// MatchRepository abstracts match persistence. Reads are idempotent and
// side-effect-free; they are the resync source for reconnecting clients.
type MatchRepository interface {
	ListByFilter(ctx context.Context, filter MatchFilter) ([]MatchState, error)
	GetWithEvents(ctx context.Context, matchID int64) (*MatchState, []MatchEvent, error)
	UpsertState(ctx context.Context, update ScoreUpdate) error
	InsertEvent(ctx context.Context, event MatchEvent) error
}

// PreferenceRepository abstracts per-user preference persistence and the
// subscription tier read used for entitlement checks.
type PreferenceRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	Put(ctx context.Context, userID uuid.UUID, prefs Preferences) error
	Tier(ctx context.Context, userID uuid.UUID) (SubscriptionTier, error)
}

// Identity is what token validation yields for an authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Tier   SubscriptionTier
	Expiry time.Time
}

// TokenVerifier is the consumed token-validation collaborator. Called once
// at handshake; long-lived connections rely on Expiry.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// TokenRefresher is the client-side collaborator consulted once when a
// handshake is rejected with a token the caller still believed valid.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Publisher is the gateway entry point exposed to internal producers
// (ingestion bridge, admin actions). Best effort with respect to any
// single slow session; never blocks the caller on a network write.
type Publisher interface {
	Publish(topic Topic, frame Frame)
}
