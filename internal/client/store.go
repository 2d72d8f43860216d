package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	"github.com/Dekunlebells/okaygoal-sub001/internal/logging"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
	"github.com/Dekunlebells/okaygoal-sub001/internal/platform/retry"
	"github.com/Dekunlebells/okaygoal-sub001/internal/reconcile"
)

const fetchTimeout = 10 * time.Second

// Fetcher is the read side of the persistence collaborator: an idempotent,
// side-effect-free source of full match lists used for the initial load
// and the post-reconnect resync.
type Fetcher interface {
	ListMatches(ctx context.Context, filter domain.MatchFilter) ([]domain.MatchState, error)
	GetMatch(ctx context.Context, matchID int64) (domain.MatchState, []domain.MatchEvent, error)
}

type storeOp interface{ isStoreOp() }

type baseStoreOp struct{}

func (baseStoreOp) isStoreOp() {}

type resyncOp struct{ baseStoreOp }

type selectOp struct {
	baseStoreOp
	matchID int64
}

type deselectOp struct{ baseStoreOp }

// Store maintains the client-side snapshot. All mutation happens on the
// Run goroutine: inbound frames are folded in strict arrival order and
// resync/select requests are serialized onto the same loop, so the
// snapshot is never mutated concurrently.
type Store struct {
	fetcher Fetcher
	ops     chan storeOp

	mu   sync.RWMutex
	snap reconcile.Snapshot
}

// NewStore creates a store; call Run to start processing.
func NewStore(fetcher Fetcher) *Store {
	return &Store{
		fetcher: fetcher,
		ops:     make(chan storeOp, 16),
	}
}

// Current returns the latest consistent snapshot. Safe for concurrent use;
// the returned value is a deep copy.
func (s *Store) Current() reconcile.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// RequestResync schedules a full refetch of all four match lists (and the
// selected match detail, if any). Wired into the manager's OnConnected
// hook so every successful handshake repairs the gap since the last
// connection.
func (s *Store) RequestResync() {
	s.ops <- resyncOp{}
}

// Select opens the detail view for a match; its event history is fetched
// and subsequent events for it are retained.
func (s *Store) Select(matchID int64) {
	s.ops <- selectOp{matchID: matchID}
}

// Deselect closes the detail view and drops the retained events.
func (s *Store) Deselect() {
	s.ops <- deselectOp{}
}

// Run consumes inbound frames until the channel closes or ctx is
// cancelled. It is the single logical thread of the client side.
func (s *Store) Run(ctx context.Context, frames <-chan domain.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-s.ops:
			s.handleOp(ctx, op)
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.applyFrame(f)
		}
	}
}

func (s *Store) handleOp(ctx context.Context, op storeOp) {
	switch o := op.(type) {
	case resyncOp:
		s.resync(ctx)
	case selectOp:
		s.selectMatch(ctx, o.matchID)
	case deselectOp:
		s.publish(s.snapshot().Deselect())
	}
}

func (s *Store) applyFrame(f domain.Frame) {
	switch f.Type {
	case domain.FrameScoreUpdate:
		u, err := f.ScoreUpdate()
		if err != nil {
			slog.Warn("dropping undecodable score update", "error", err)
			return
		}
		next, anomaly := reconcile.ApplyScore(s.snapshot(), u)
		if anomaly != nil {
			metrics.StatusAnomaliesTotal.Inc()
			slog.Warn("regressive status transition applied",
				"match_id", anomaly.MatchID,
				"from", string(anomaly.From),
				"to", string(anomaly.To),
			)
		}
		s.publish(next)

	case domain.FrameMatchEvent:
		e, err := f.MatchEvent()
		if err != nil {
			slog.Warn("dropping undecodable match event", "error", err)
			return
		}
		s.publish(reconcile.ApplyEvent(s.snapshot(), e))

	case domain.FrameSubscribeAck, domain.FrameError:
		// Informational; nothing to fold into the snapshot.

	default:
		slog.Debug("ignoring frame", "type", string(f.Type))
	}
}

// resync replaces all four lists from the persistence collaborator. Runs
// after every reconnect: queued deliveries may have been dropped while
// disconnected, and continuity cannot be assumed after an overflow close.
func (s *Store) resync(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	policy := retry.Policy{MaxAttempts: 3, InitialBackoff: 200 * time.Millisecond}

	lists := make(map[domain.MatchFilter][]domain.MatchState, 4)
	for _, filter := range []domain.MatchFilter{domain.FilterLive, domain.FilterToday, domain.FilterUpcoming, domain.FilterRecent} {
		matches, err := retry.Do(fetchCtx, policy, func() ([]domain.MatchState, error) {
			return s.fetcher.ListMatches(fetchCtx, filter)
		})
		if err != nil {
			logging.WithError(err).Error("resync fetch failed, keeping previous snapshot",
				"filter", string(filter))
			return
		}
		lists[filter] = matches
	}

	next := s.snapshot()
	next.Live = lists[domain.FilterLive]
	next.Today = lists[domain.FilterToday]
	next.Upcoming = lists[domain.FilterUpcoming]
	next.Recent = lists[domain.FilterRecent]

	if next.Selected != nil {
		match, events, err := s.fetcher.GetMatch(fetchCtx, next.Selected.Match.MatchID)
		if err != nil {
			slog.Warn("resync of selected match failed, keeping stale detail",
				"match_id", next.Selected.Match.MatchID, "error", err)
		} else {
			next = next.Select(match, events)
		}
	}

	s.publish(next)
	slog.Info("snapshot resynced",
		"live", len(next.Live), "today", len(next.Today),
		"upcoming", len(next.Upcoming), "recent", len(next.Recent))
}

func (s *Store) selectMatch(ctx context.Context, matchID int64) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	match, events, err := s.fetcher.GetMatch(fetchCtx, matchID)
	if err != nil {
		logging.WithError(err).Error("failed to load match detail", "match_id", matchID)
		return
	}
	s.publish(s.snapshot().Select(match, events))
}

func (s *Store) snapshot() reconcile.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) publish(next reconcile.Snapshot) {
	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
}
