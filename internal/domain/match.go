package domain

import "time"

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusScheduled MatchStatus = "scheduled"
	StatusLive      MatchStatus = "live"
	StatusFinished  MatchStatus = "finished"
	StatusPostponed MatchStatus = "postponed"
	StatusCancelled MatchStatus = "cancelled"
)

// Valid reports whether s is one of the known match statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusFinished, StatusPostponed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether a match in this status will receive no further
// regular updates.
func (s MatchStatus) Terminal() bool {
	return s == StatusFinished || s == StatusPostponed || s == StatusCancelled
}

// MatchState is the mutable view of a single match. Identity is MatchID;
// score, status and minute change over the match's lifetime.
type MatchState struct {
	MatchID   int64       `json:"match_id" db:"match_id"`
	HomeTeam  string      `json:"home_team" db:"home_team"`
	AwayTeam  string      `json:"away_team" db:"away_team"`
	HomeScore int         `json:"home_score" db:"home_score"`
	AwayScore int         `json:"away_score" db:"away_score"`
	Status    MatchStatus `json:"status" db:"status"`
	Minute    *int        `json:"minute,omitempty" db:"minute"`
	MatchDate time.Time   `json:"match_date" db:"match_date"`
}

// EventType classifies a discrete in-match fact.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventCard         EventType = "card"
	EventSubstitution EventType = "substitution"
	EventPenalty      EventType = "penalty"
	EventOwnGoal      EventType = "own_goal"
	EventVAR          EventType = "var"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventGoal, EventCard, EventSubstitution, EventPenalty, EventOwnGoal, EventVAR:
		return true
	}
	return false
}

// MatchEvent is an immutable fact belonging to exactly one match.
// Display ordering is (TimeMinute, TimeExtra) descending, newest first.
type MatchEvent struct {
	MatchID        int64     `json:"match_id" db:"match_id"`
	TimeMinute     int       `json:"time_minute" db:"time_minute"`
	TimeExtra      int       `json:"time_extra" db:"time_extra"`
	Type           EventType `json:"type" db:"type"`
	PlayerID       *int64    `json:"player_id,omitempty" db:"player_id"`
	AssistPlayerID *int64    `json:"assist_player_id,omitempty" db:"assist_player_id"`
}

// EventIdentity is the deduplication key for a MatchEvent.
type EventIdentity struct {
	MatchID    int64
	TimeMinute int
	TimeExtra  int
	Type       EventType
	PlayerID   int64
}

// Identity returns the deduplication key for the event. A nil PlayerID
// maps to zero, which is fine: two otherwise-identical events without a
// player are the same fact.
func (e MatchEvent) Identity() EventIdentity {
	id := EventIdentity{
		MatchID:    e.MatchID,
		TimeMinute: e.TimeMinute,
		TimeExtra:  e.TimeExtra,
		Type:       e.Type,
	}
	if e.PlayerID != nil {
		id.PlayerID = *e.PlayerID
	}
	return id
}

// Before reports whether e sorts after other in display order, i.e. whether
// e's (TimeMinute, TimeExtra) is strictly greater. Newest first.
func (e MatchEvent) Before(other MatchEvent) bool {
	if e.TimeMinute != other.TimeMinute {
		return e.TimeMinute > other.TimeMinute
	}
	return e.TimeExtra > other.TimeExtra
}

// ScoreUpdate is the wire snapshot of a match's mutable fields. It is a
// full snapshot, not a delta; applying it twice is idempotent.
type ScoreUpdate struct {
	MatchID    int64       `json:"match_id"`
	HomeScore  int         `json:"home_score"`
	AwayScore  int         `json:"away_score"`
	Status     MatchStatus `json:"status"`
	Minute     *int        `json:"minute,omitempty"`
	Correction bool        `json:"correction,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Preferences holds the per-user settings written through the preference
// repository.
type Preferences struct {
	FavoriteTeamIDs []int64 `json:"favorite_team_ids"`
	NotifyGoals     bool    `json:"notify_goals"`
	NotifyKickoff   bool    `json:"notify_kickoff"`
}

// SubscriptionTier is the user's access level, used for rate-limit quotas
// and premium topic entitlement.
type SubscriptionTier string

const (
	TierAnonymous SubscriptionTier = "anonymous"
	TierBasic     SubscriptionTier = "basic"
	TierPremium   SubscriptionTier = "premium"
)

// Valid reports whether t is a recognized tier.
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierAnonymous, TierBasic, TierPremium:
		return true
	}
	return false
}
