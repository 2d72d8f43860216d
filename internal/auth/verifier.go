// Package auth validates bearer tokens against the account service and
// resolves them to a user identity and subscription tier.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

const verifyCallTimeout = 10 * time.Second

// HTTPVerifier checks tokens with the account service's introspection
// endpoint. Implements domain.TokenVerifier.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: verifyCallTimeout},
	}
}

type verifyResponse struct {
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verify resolves a bearer token to an identity. Rejected tokens map to
// domain.ErrInvalidToken so callers can distinguish auth failures from
// account-service outages.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v1/tokens/verify", nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to execute verify request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Identity{}, domain.ErrInvalidToken
	default:
		return domain.Identity{}, fmt.Errorf("account service returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to parse verify response: %w", err)
	}

	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("account service returned invalid user id %q: %w", body.UserID, err)
	}

	tier := domain.SubscriptionTier(body.Tier)
	if !tier.Valid() {
		tier = domain.TierAnonymous
	}

	return domain.Identity{UserID: userID, Tier: tier, Expiry: body.ExpiresAt}, nil
}
