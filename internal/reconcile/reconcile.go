package reconcile

import (
	"slices"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

// Anomaly reports a regressive status transition that was applied anyway.
// The authoritative source wins, but callers should surface it: silently
// swallowing these can mask upstream bugs.
type Anomaly struct {
	MatchID int64
	From    domain.MatchStatus
	To      domain.MatchStatus
}

// ApplyScore folds a score snapshot into the client snapshot. The update
// overwrites score/status/minute wherever the match appears; a status
// change relocates the match between lists and triggers a re-sort of the
// affected lists. In-place field updates never reorder, so score ticks do
// not thrash list order.
//
// A finished-to-live transition without the correction flag is applied to
// stay consistent with the source and returned as an Anomaly.
func ApplyScore(s Snapshot, u domain.ScoreUpdate) (Snapshot, *Anomaly) {
	out := s.Clone()

	prev, known := out.currentStatus(u.MatchID)
	if !known {
		out.admit(u)
		return out, nil
	}

	out.overwrite(u)

	var anomaly *Anomaly
	if prev == domain.StatusFinished && u.Status == domain.StatusLive && !u.Correction {
		anomaly = &Anomaly{MatchID: u.MatchID, From: prev, To: u.Status}
	}

	if u.Status != prev {
		out.relocate(u.MatchID, u.Status)
	}
	return out, anomaly
}

// ApplyEvent folds a discrete match fact into the snapshot. Events are
// retained only for the currently selected match; anything else is
// acknowledged and dropped to bound memory. Duplicate identities are
// ignored, and insertion keeps (TimeMinute, TimeExtra) descending with
// ties in arrival order.
func ApplyEvent(s Snapshot, e domain.MatchEvent) Snapshot {
	out := s.Clone()
	if out.Selected == nil || out.Selected.Match.MatchID != e.MatchID {
		return out
	}

	id := e.Identity()
	for _, existing := range out.Selected.Events {
		if existing.Identity() == id {
			return out
		}
	}

	events := out.Selected.Events
	at := len(events)
	for i, existing := range events {
		if e.Before(existing) {
			at = i
			break
		}
	}
	out.Selected.Events = slices.Insert(events, at, e)
	return out
}

// currentStatus finds the match's status as currently held, checking the
// list entries first and falling back to the selected match.
func (s *Snapshot) currentStatus(matchID int64) (domain.MatchStatus, bool) {
	for _, list := range [][]domain.MatchState{s.Live, s.Today, s.Upcoming, s.Recent} {
		if i := indexOf(list, matchID); i >= 0 {
			return list[i].Status, true
		}
	}
	if s.Selected != nil && s.Selected.Match.MatchID == matchID {
		return s.Selected.Match.Status, true
	}
	return "", false
}

// overwrite applies the update's mutable fields everywhere the match
// appears, preserving list positions.
func (s *Snapshot) overwrite(u domain.ScoreUpdate) {
	apply := func(m *domain.MatchState) {
		m.HomeScore = u.HomeScore
		m.AwayScore = u.AwayScore
		m.Status = u.Status
		m.Minute = nil
		if u.Status == domain.StatusLive {
			m.Minute = u.Minute
		}
	}
	for _, list := range [][]domain.MatchState{s.Live, s.Today, s.Upcoming, s.Recent} {
		if i := indexOf(list, u.MatchID); i >= 0 {
			apply(&list[i])
		}
	}
	if s.Selected != nil && s.Selected.Match.MatchID == u.MatchID {
		apply(&s.Selected.Match)
	}
}

// admit creates a MatchState for a match seen for the first time via a
// pushed update and places it in the list implied by its status.
func (s *Snapshot) admit(u domain.ScoreUpdate) {
	m := domain.MatchState{
		MatchID:   u.MatchID,
		HomeScore: u.HomeScore,
		AwayScore: u.AwayScore,
		Status:    u.Status,
		MatchDate: u.Timestamp,
	}
	if u.Status == domain.StatusLive {
		m.Minute = u.Minute
	}
	switch {
	case u.Status == domain.StatusLive:
		s.Live = append(s.Live, m)
		sortByDateAsc(s.Live)
	case u.Status.Terminal():
		s.Recent = slices.Insert(s.Recent, 0, m)
		s.truncateRecent()
		sortByDateDesc(s.Recent)
	default:
		s.Upcoming = append(s.Upcoming, m)
		sortByDateAsc(s.Upcoming)
	}
}

// relocate moves the match to the list implied by its new status and
// re-sorts the lists it touched.
func (s *Snapshot) relocate(matchID int64, status domain.MatchStatus) {
	var m domain.MatchState
	found := false
	for _, list := range [][]domain.MatchState{s.Live, s.Today, s.Upcoming, s.Recent} {
		if i := indexOf(list, matchID); i >= 0 {
			m = list[i]
			found = true
			break
		}
	}
	if !found {
		if s.Selected == nil || s.Selected.Match.MatchID != matchID {
			return
		}
		m = s.Selected.Match
	}

	switch {
	case status.Terminal():
		s.Live = removeMatch(s.Live, matchID)
		s.Today = removeMatch(s.Today, matchID)
		s.Upcoming = removeMatch(s.Upcoming, matchID)
		if indexOf(s.Recent, matchID) < 0 {
			s.Recent = slices.Insert(s.Recent, 0, m)
			s.truncateRecent()
		}
		sortByDateDesc(s.Recent)
	case status == domain.StatusLive:
		s.Today = removeMatch(s.Today, matchID)
		s.Upcoming = removeMatch(s.Upcoming, matchID)
		s.Recent = removeMatch(s.Recent, matchID)
		if indexOf(s.Live, matchID) < 0 {
			s.Live = append(s.Live, m)
		}
		sortByDateAsc(s.Live)
	default: // back to scheduled via correction
		s.Live = removeMatch(s.Live, matchID)
		s.Today = removeMatch(s.Today, matchID)
		s.Recent = removeMatch(s.Recent, matchID)
		if indexOf(s.Upcoming, matchID) < 0 {
			s.Upcoming = append(s.Upcoming, m)
		}
		sortByDateAsc(s.Upcoming)
	}
}

// truncateRecent evicts the oldest entries beyond the cap. Recent is kept
// newest-first, so eviction trims the tail.
func (s *Snapshot) truncateRecent() {
	if len(s.Recent) > MaxRecent {
		s.Recent = s.Recent[:MaxRecent]
	}
}
