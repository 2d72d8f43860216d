package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	updates []domain.ScoreUpdate
	events  []domain.MatchEvent
	fail    bool
}

func (r *fakeRepo) ListByFilter(context.Context, domain.MatchFilter) ([]domain.MatchState, error) {
	return nil, nil
}

func (r *fakeRepo) GetWithEvents(context.Context, int64) (*domain.MatchState, []domain.MatchEvent, error) {
	return nil, nil, domain.ErrMatchNotFound
}

func (r *fakeRepo) UpsertState(_ context.Context, update domain.ScoreUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.updates = append(r.updates, update)
	return nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, event domain.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.events = append(r.events, event)
	return nil
}

type published struct {
	topic domain.Topic
	frame domain.Frame
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *recordingPublisher) Publish(topic domain.Topic, frame domain.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{topic: topic, frame: frame})
}

func (p *recordingPublisher) topics() []domain.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Topic, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.topic
	}
	return out
}

func TestFeed_ScorePersistedAndPublishedToBothTopics(t *testing.T) {
	repo := &fakeRepo{}
	pub := &recordingPublisher{}
	feed := &Feed{repo: repo, pub: pub}

	payload, err := json.Marshal(domain.ScoreUpdate{
		MatchID:   42,
		HomeScore: 2,
		AwayScore: 1,
		Status:    domain.StatusLive,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	feed.dispatch(context.Background(), ScoresChannel, payload)

	require.Len(t, repo.updates, 1)
	assert.Equal(t, int64(42), repo.updates[0].MatchID)
	assert.Equal(t, []domain.Topic{domain.TopicLiveScores, domain.MatchTopic(42)}, pub.topics())
}

func TestFeed_EventPersistedAndPublishedToMatchTopic(t *testing.T) {
	repo := &fakeRepo{}
	pub := &recordingPublisher{}
	feed := &Feed{repo: repo, pub: pub}

	payload, err := json.Marshal(domain.MatchEvent{
		MatchID:    7,
		Type:       domain.EventGoal,
		TimeMinute: 55,
	})
	require.NoError(t, err)

	feed.dispatch(context.Background(), EventsChannel, payload)

	require.Len(t, repo.events, 1)
	assert.Equal(t, []domain.Topic{domain.MatchTopic(7)}, pub.topics())
	require.Len(t, pub.calls, 1)
	assert.Equal(t, domain.FrameMatchEvent, pub.calls[0].frame.Type)
}

func TestFeed_MalformedPayloadDropped(t *testing.T) {
	repo := &fakeRepo{}
	pub := &recordingPublisher{}
	feed := &Feed{repo: repo, pub: pub}

	feed.dispatch(context.Background(), ScoresChannel, []byte("{not json"))
	feed.dispatch(context.Background(), EventsChannel, []byte(`{"match_id":1,"type":"streaker"}`))

	assert.Empty(t, repo.updates)
	assert.Empty(t, repo.events)
	assert.Empty(t, pub.calls)
}

func TestFeed_PersistFailureStillDelivers(t *testing.T) {
	repo := &fakeRepo{fail: true}
	pub := &recordingPublisher{}
	feed := &Feed{repo: repo, pub: pub}

	payload, err := json.Marshal(domain.ScoreUpdate{
		MatchID: 9,
		Status:  domain.StatusLive,
	})
	require.NoError(t, err)

	feed.dispatch(context.Background(), ScoresChannel, payload)

	assert.Len(t, pub.topics(), 2, "live delivery survives a database outage")
}
