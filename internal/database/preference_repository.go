package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

// PreferenceRepo implements domain.PreferenceRepository backed by PostgreSQL.
type PreferenceRepo struct {
	db *DB
}

func NewPreferenceRepo(db *DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// Get returns the stored preferences, or the defaults for a user who has
// never saved any.
func (r *PreferenceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	var prefs domain.Preferences
	err := r.db.Pool.QueryRow(ctx,
		`SELECT favorite_team_ids, notify_goals, notify_kickoff
		 FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&prefs.FavoriteTeamIDs, &prefs.NotifyGoals, &prefs.NotifyKickoff)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Preferences{NotifyGoals: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences for %s: %w", userID, err)
	}
	return &prefs, nil
}

func (r *PreferenceRepo) Put(ctx context.Context, userID uuid.UUID, prefs domain.Preferences) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_preferences (user_id, favorite_team_ids, notify_goals, notify_kickoff, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			favorite_team_ids = EXCLUDED.favorite_team_ids,
			notify_goals      = EXCLUDED.notify_goals,
			notify_kickoff    = EXCLUDED.notify_kickoff,
			updated_at        = now()`,
		userID, prefs.FavoriteTeamIDs, prefs.NotifyGoals, prefs.NotifyKickoff)
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", userID, err)
	}
	return nil
}

// Tier returns the user's subscription tier. A registered user without a
// subscription row is on the basic tier.
func (r *PreferenceRepo) Tier(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error) {
	var tier domain.SubscriptionTier
	err := r.db.Pool.QueryRow(ctx,
		`SELECT tier FROM user_subscriptions WHERE user_id = $1`, userID).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TierBasic, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get tier for %s: %w", userID, err)
	}
	if !tier.Valid() {
		return domain.TierBasic, nil
	}
	return tier, nil
}
