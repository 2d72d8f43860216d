package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Topic is a named subscription channel carrying a subset of update
// messages. A session may hold any number of topics.
type Topic string

// TopicLiveScores carries every ScoreUpdate for every tracked match.
const TopicLiveScores Topic = "live_scores"

const (
	matchTopicPrefix = "match:"
	userTopicPrefix  = "user:"
)

// MatchTopic returns the detail topic for a single match.
func MatchTopic(matchID int64) Topic {
	return Topic(matchTopicPrefix + strconv.FormatInt(matchID, 10))
}

// UserTopic returns the per-user notification topic.
func UserTopic(userID uuid.UUID) Topic {
	return Topic(userTopicPrefix + userID.String())
}

// ParseTopic validates a client-supplied topic string.
func ParseTopic(s string) (Topic, error) {
	switch {
	case s == string(TopicLiveScores):
		return TopicLiveScores, nil
	case strings.HasPrefix(s, matchTopicPrefix):
		if _, err := strconv.ParseInt(strings.TrimPrefix(s, matchTopicPrefix), 10, 64); err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownTopic, s)
		}
		return Topic(s), nil
	case strings.HasPrefix(s, userTopicPrefix):
		if _, err := uuid.Parse(strings.TrimPrefix(s, userTopicPrefix)); err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownTopic, s)
		}
		return Topic(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopic, s)
}

// MatchID returns the match id for a match detail topic, or false.
func (t Topic) MatchID() (int64, bool) {
	if !strings.HasPrefix(string(t), matchTopicPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(string(t), matchTopicPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// UserID returns the user id for a notification topic, or false.
func (t Topic) UserID() (uuid.UUID, bool) {
	if !strings.HasPrefix(string(t), userTopicPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(string(t), userTopicPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Premium reports whether subscribing to this topic requires a premium
// subscription tier. Match detail topics are premium-only.
func (t Topic) Premium() bool {
	_, ok := t.MatchID()
	return ok
}
