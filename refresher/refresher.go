// Package refresher renews the access token before or after it expires and
// makes sure a tab never has more than one renewal in flight.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
)

// RoutePath is the refresh endpoint relative to the API base URL.
const RoutePath = "/auth/refresh"

// Refresher performs one refresh call and returns the new token lifetime.
type Refresher interface {
	Refresh(ctx context.Context) (time.Duration, error)
}

// HTTPRefresher posts to the refresh endpoint with the client's cookie
// credentials. The client must not use the auth-retry transport.
type HTTPRefresher struct {
	client *http.Client
	url    string
}

var _ Refresher = (*HTTPRefresher)(nil)

func NewHTTPRefresher(client *http.Client, baseURL string) *HTTPRefresher {
	return &HTTPRefresher{client: client, url: baseURL + RoutePath}
}

func (r *HTTPRefresher) Refresh(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return 0, fmt.Errorf("[HTTPRefresher Refresh] new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("[HTTPRefresher Refresh] %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body apimodel.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return 0, fmt.Errorf("[HTTPRefresher Refresh] status %d %s: %w", resp.StatusCode, body.Code, apperrors.ErrRefreshFailed)
	}

	var body apimodel.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("[HTTPRefresher Refresh] decode: %w", err)
	}
	if body.ExpiresIn <= 0 {
		return 0, fmt.Errorf("[HTTPRefresher Refresh] non-positive expiresIn %d: %w", body.ExpiresIn, apperrors.ErrRefreshFailed)
	}
	return time.Duration(body.ExpiresIn) * time.Second, nil
}
