package domain

// MatchListResponse is the payload of the filtered match list endpoints,
// consumed by clients for the initial load and the post-reconnect resync.
type MatchListResponse struct {
	Matches []MatchState `json:"matches"`
}

// MatchDetailResponse is the payload of the match detail endpoint.
type MatchDetailResponse struct {
	Match  MatchState   `json:"match"`
	Events []MatchEvent `json:"events"`
}
