package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

// matchColumns must match the Scan order in scanMatch.
const matchColumns = `match_id, home_team, away_team, home_score, away_score, status, minute, match_date`

// recentLimit bounds the recent list at the query level.
const recentLimit = 20

// MatchRepo implements domain.MatchRepository backed by PostgreSQL.
type MatchRepo struct {
	db *DB
}

func NewMatchRepo(db *DB) *MatchRepo {
	return &MatchRepo{db: db}
}

func scanMatch(row pgx.Row) (domain.MatchState, error) {
	var m domain.MatchState
	err := row.Scan(&m.MatchID, &m.HomeTeam, &m.AwayTeam, &m.HomeScore,
		&m.AwayScore, &m.Status, &m.Minute, &m.MatchDate)
	return m, err
}

func (r *MatchRepo) ListByFilter(ctx context.Context, filter domain.MatchFilter) ([]domain.MatchState, error) {
	var query string
	switch filter {
	case domain.FilterLive:
		query = `SELECT ` + matchColumns + ` FROM matches
			WHERE status = 'live' ORDER BY match_date ASC`
	case domain.FilterToday:
		query = `SELECT ` + matchColumns + ` FROM matches
			WHERE match_date >= date_trunc('day', now())
			  AND match_date < date_trunc('day', now()) + INTERVAL '1 day'
			ORDER BY match_date ASC`
	case domain.FilterUpcoming:
		query = `SELECT ` + matchColumns + ` FROM matches
			WHERE status = 'scheduled' AND match_date >= now()
			ORDER BY match_date ASC`
	case domain.FilterRecent:
		query = `SELECT ` + matchColumns + ` FROM matches
			WHERE status IN ('finished', 'postponed', 'cancelled')
			ORDER BY match_date DESC LIMIT ` + fmt.Sprint(recentLimit)
	default:
		return nil, fmt.Errorf("unknown match filter %q", filter)
	}

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches (%s): %w", filter, err)
	}
	defer rows.Close()

	var matches []domain.MatchState
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *MatchRepo) GetWithEvents(ctx context.Context, matchID int64) (*domain.MatchState, []domain.MatchEvent, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = $1`, matchID)

	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT match_id, time_minute, time_extra, type, player_id, assist_player_id
		 FROM match_events WHERE match_id = $1
		 ORDER BY time_minute DESC, time_extra DESC`, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list events for match %d: %w", matchID, err)
	}
	defer rows.Close()

	var events []domain.MatchEvent
	for rows.Next() {
		var e domain.MatchEvent
		if err := rows.Scan(&e.MatchID, &e.TimeMinute, &e.TimeExtra, &e.Type,
			&e.PlayerID, &e.AssistPlayerID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return &m, events, rows.Err()
}

// UpsertState writes a score snapshot through to the matches table. A
// snapshot for an unknown match creates a skeleton row; team names arrive
// through the fixture import, not the live feed.
func (r *MatchRepo) UpsertState(ctx context.Context, update domain.ScoreUpdate) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO matches (match_id, home_score, away_score, status, minute, match_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (match_id) DO UPDATE SET
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			status     = EXCLUDED.status,
			minute     = EXCLUDED.minute,
			updated_at = now()`,
		update.MatchID, update.HomeScore, update.AwayScore, update.Status, update.Minute)
	if err != nil {
		return fmt.Errorf("failed to upsert match %d: %w", update.MatchID, err)
	}
	return nil
}

// InsertEvent stores a match event. Redelivered events are absorbed by the
// identity index; inserting the same event twice is not an error.
func (r *MatchRepo) InsertEvent(ctx context.Context, event domain.MatchEvent) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO match_events (match_id, time_minute, time_extra, type, player_id, assist_player_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING`,
		event.MatchID, event.TimeMinute, event.TimeExtra, event.Type,
		event.PlayerID, event.AssistPlayerID)
	if err != nil {
		return fmt.Errorf("failed to insert event for match %d: %w", event.MatchID, err)
	}
	return nil
}
