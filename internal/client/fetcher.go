package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

// HTTPFetcher implements Fetcher against the REST surface of the
// persistence collaborator.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (f *HTTPFetcher) httpClient() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (f *HTTPFetcher) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	case http.StatusNotFound:
		return domain.ErrMatchNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: fetch %s rejected with %d", domain.ErrInvalidToken, path, resp.StatusCode)
	default:
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}
}

// ListMatches fetches one filtered match list.
func (f *HTTPFetcher) ListMatches(ctx context.Context, filter domain.MatchFilter) ([]domain.MatchState, error) {
	var out domain.MatchListResponse
	if err := f.get(ctx, "/api/matches/"+string(filter), &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// GetMatch fetches a match with its event history.
func (f *HTTPFetcher) GetMatch(ctx context.Context, matchID int64) (domain.MatchState, []domain.MatchEvent, error) {
	var out domain.MatchDetailResponse
	if err := f.get(ctx, "/api/matches/"+strconv.FormatInt(matchID, 10), &out); err != nil {
		return domain.MatchState{}, nil, err
	}
	return out.Match, out.Events, nil
}
