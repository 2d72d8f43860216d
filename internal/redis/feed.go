package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	"github.com/Dekunlebells/okaygoal-sub001/internal/logging"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
	"github.com/Dekunlebells/okaygoal-sub001/internal/platform/retry"
)

// Upstream providers push live data onto these channels.
const (
	ScoresChannel = "ingest:scores"
	EventsChannel = "ingest:events"
)

const feedWriteBackoff = 200 * time.Millisecond

// Feed bridges the ingest Pub/Sub channels to the gateway. Each message is
// persisted, then published to its topics. Persistence failures do not
// block live delivery; the database catches up on the next snapshot.
type Feed struct {
	rdb  *goredis.Client
	repo domain.MatchRepository
	pub  domain.Publisher
}

func NewFeed(client *Client, repo domain.MatchRepository, pub domain.Publisher) *Feed {
	return &Feed{rdb: client.rdb, repo: repo, pub: pub}
}

// Run consumes feed messages until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, ScoresChannel, EventsChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to ingest channels: %w", err)
	}
	slog.Info("feed bridge running", "channels", []string{ScoresChannel, EventsChannel})

	msgCh := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgCh:
			if !ok {
				return fmt.Errorf("ingest subscription closed")
			}
			f.dispatch(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (f *Feed) dispatch(ctx context.Context, channel string, payload []byte) {
	switch channel {
	case ScoresChannel:
		f.handleScore(ctx, payload)
	case EventsChannel:
		f.handleEvent(ctx, payload)
	default:
		slog.Warn("feed message on unexpected channel", "channel", channel)
	}
}

func (f *Feed) handleScore(ctx context.Context, payload []byte) {
	var update domain.ScoreUpdate
	if err := json.Unmarshal(payload, &update); err != nil || !update.Status.Valid() {
		metrics.FeedMessagesTotal.WithLabelValues("score", "malformed").Inc()
		slog.Warn("dropping malformed score message", "error", err)
		return
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	f.persist(ctx, "score", update.MatchID, func() error {
		return f.repo.UpsertState(ctx, update)
	})

	frame, err := domain.NewFrame(domain.FrameScoreUpdate, update, update.Timestamp)
	if err != nil {
		metrics.FeedMessagesTotal.WithLabelValues("score", "malformed").Inc()
		return
	}
	f.pub.Publish(domain.TopicLiveScores, frame)
	f.pub.Publish(domain.MatchTopic(update.MatchID), frame)
	metrics.FeedMessagesTotal.WithLabelValues("score", "delivered").Inc()
}

func (f *Feed) handleEvent(ctx context.Context, payload []byte) {
	var event domain.MatchEvent
	if err := json.Unmarshal(payload, &event); err != nil || !event.Type.Valid() {
		metrics.FeedMessagesTotal.WithLabelValues("event", "malformed").Inc()
		slog.Warn("dropping malformed event message", "error", err)
		return
	}

	f.persist(ctx, "event", event.MatchID, func() error {
		return f.repo.InsertEvent(ctx, event)
	})

	frame, err := domain.NewFrame(domain.FrameMatchEvent, event, time.Now())
	if err != nil {
		metrics.FeedMessagesTotal.WithLabelValues("event", "malformed").Inc()
		return
	}
	f.pub.Publish(domain.MatchTopic(event.MatchID), frame)
	metrics.FeedMessagesTotal.WithLabelValues("event", "delivered").Inc()
}

func (f *Feed) persist(ctx context.Context, kind string, matchID int64, op func() error) {
	err := retry.DoVoid(ctx, retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: feedWriteBackoff,
	}, op)
	if err != nil {
		metrics.FeedMessagesTotal.WithLabelValues(kind, "persist_failed").Inc()
		logging.WithMatch(matchID).Error("failed to persist feed message", "kind", kind, "error", err)
	}
}
