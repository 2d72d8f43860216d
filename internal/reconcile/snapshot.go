package reconcile

import (
	"slices"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

// MaxRecent caps the recent list; the oldest entry is evicted first.
const MaxRecent = 20

// SelectedMatch is the optionally-open detail view: one match plus its
// retained event sequence, newest first.
type SelectedMatch struct {
	Match  domain.MatchState
	Events []domain.MatchEvent
}

// Snapshot is the complete client-side view of all tracked match lists at
// a point in time. A match id appears in at most one of Live/Today/Upcoming
// plus at most once in Recent.
type Snapshot struct {
	Live     []domain.MatchState
	Today    []domain.MatchState
	Upcoming []domain.MatchState
	Recent   []domain.MatchState
	Selected *SelectedMatch
}

// Clone returns a deep copy; Apply functions work on the copy so the input
// snapshot is never aliased.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Live:     slices.Clone(s.Live),
		Today:    slices.Clone(s.Today),
		Upcoming: slices.Clone(s.Upcoming),
		Recent:   slices.Clone(s.Recent),
	}
	if s.Selected != nil {
		out.Selected = &SelectedMatch{
			Match:  s.Selected.Match,
			Events: slices.Clone(s.Selected.Events),
		}
	}
	return out
}

// Select opens the detail view for a match, replacing any previous
// selection. Events must already be in display order.
func (s Snapshot) Select(match domain.MatchState, events []domain.MatchEvent) Snapshot {
	out := s.Clone()
	out.Selected = &SelectedMatch{Match: match, Events: slices.Clone(events)}
	return out
}

// Deselect closes the detail view.
func (s Snapshot) Deselect() Snapshot {
	out := s.Clone()
	out.Selected = nil
	return out
}

// Find returns which lists currently hold the match id. A consistent
// snapshot holds it in at most one of live/today/upcoming.
func (s Snapshot) Find(matchID int64) []domain.MatchFilter {
	var in []domain.MatchFilter
	for _, l := range []struct {
		filter domain.MatchFilter
		list   []domain.MatchState
	}{
		{domain.FilterLive, s.Live},
		{domain.FilterToday, s.Today},
		{domain.FilterUpcoming, s.Upcoming},
		{domain.FilterRecent, s.Recent},
	} {
		if indexOf(l.list, matchID) >= 0 {
			in = append(in, l.filter)
		}
	}
	return in
}

func indexOf(list []domain.MatchState, matchID int64) int {
	return slices.IndexFunc(list, func(m domain.MatchState) bool { return m.MatchID == matchID })
}

func removeMatch(list []domain.MatchState, matchID int64) []domain.MatchState {
	i := indexOf(list, matchID)
	if i < 0 {
		return list
	}
	return slices.Delete(list, i, i+1)
}

func sortByDateAsc(list []domain.MatchState) {
	slices.SortStableFunc(list, func(a, b domain.MatchState) int {
		return a.MatchDate.Compare(b.MatchDate)
	})
}

func sortByDateDesc(list []domain.MatchState) {
	slices.SortStableFunc(list, func(a, b domain.MatchState) int {
		return b.MatchDate.Compare(a.MatchDate)
	})
}
