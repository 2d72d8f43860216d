package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Dekunlebells/okaygoal-sub001/internal/config"
	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	"github.com/Dekunlebells/okaygoal-sub001/internal/gateway"
)

// --- Shared test doubles ---

type fakeVerifier struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	identity, ok := v.identities[token]
	if !ok {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return identity, nil
}

func (v *fakeVerifier) add(token string, tier domain.SubscriptionTier) domain.Identity {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.identities == nil {
		v.identities = make(map[string]domain.Identity)
	}
	identity := domain.Identity{UserID: uuid.New(), Tier: tier, Expiry: time.Now().Add(time.Hour)}
	v.identities[token] = identity
	return identity
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	lists   map[domain.MatchFilter][]domain.MatchState
	details map[int64]*domain.MatchState
	events  map[int64][]domain.MatchEvent
	err     error
}

func (r *fakeMatchRepo) ListByFilter(_ context.Context, filter domain.MatchFilter) ([]domain.MatchState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.lists[filter], nil
}

func (r *fakeMatchRepo) GetWithEvents(_ context.Context, matchID int64) (*domain.MatchState, []domain.MatchEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, nil, r.err
	}
	match, ok := r.details[matchID]
	if !ok {
		return nil, nil, domain.ErrMatchNotFound
	}
	return match, r.events[matchID], nil
}

func (r *fakeMatchRepo) UpsertState(context.Context, domain.ScoreUpdate) error { return nil }
func (r *fakeMatchRepo) InsertEvent(context.Context, domain.MatchEvent) error  { return nil }

type fakePrefsRepo struct {
	mu    sync.Mutex
	prefs map[uuid.UUID]domain.Preferences
}

func (r *fakePrefsRepo) Get(_ context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.prefs[userID]; ok {
		return &p, nil
	}
	return &domain.Preferences{NotifyGoals: true}, nil
}

func (r *fakePrefsRepo) Put(_ context.Context, userID uuid.UUID, prefs domain.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prefs == nil {
		r.prefs = make(map[uuid.UUID]domain.Preferences)
	}
	r.prefs[userID] = prefs
	return nil
}

func (r *fakePrefsRepo) Tier(context.Context, uuid.UUID) (domain.SubscriptionTier, error) {
	return domain.TierBasic, nil
}

type fakeHealth struct{ err error }

func (h *fakeHealth) HealthCheck(context.Context) error { return h.err }
func (h *fakeHealth) Ping(context.Context) error        { return h.err }

type allowAllEntitlements struct{}

func (allowAllEntitlements) Entitled(context.Context, uuid.UUID, domain.Topic) (bool, error) {
	return true, nil
}

type testServerEnv struct {
	srv      *Server
	verifier *fakeVerifier
	matches  *fakeMatchRepo
	prefs    *fakePrefsRepo
	db       *fakeHealth
	redis    *fakeHealth
}

func newTestServer(t *testing.T) *testServerEnv {
	t.Helper()

	cfg := &config.Config{
		Port:                    "0",
		MaxWebSocketConnections: 100,
		MaxSessionsPerUser:      3,
		DeliveryQueueCapacity:   64,
		RateLimitAnonymous:      100,
		RateLimitBasic:          100,
		RateLimitPremium:        100,
		RateLimitBurst:          100,
	}

	gw := gateway.New(allowAllEntitlements{}, gateway.Config{
		MaxSessionsPerIdentity: cfg.MaxSessionsPerUser,
		QueueCapacity:          cfg.DeliveryQueueCapacity,
	})
	t.Cleanup(gw.Stop)

	env := &testServerEnv{
		verifier: &fakeVerifier{},
		matches:  &fakeMatchRepo{},
		prefs:    &fakePrefsRepo{},
		db:       &fakeHealth{},
		redis:    &fakeHealth{},
	}
	env.srv = NewServer(cfg, gw, env.verifier, env.matches, env.prefs, env.db, env.redis)
	require.NotNil(t, env.srv)
	return env
}
