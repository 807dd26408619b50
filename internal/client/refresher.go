package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RefreshTransport selects how the refresh token travels to the backend
type RefreshTransport string

const (
	// RefreshInBody posts {"refresh": "<token>"} (simplejwt's TokenRefreshView)
	RefreshInBody RefreshTransport = "body"
	// RefreshInCookie sends the token as a refresh_token cookie with an empty body
	RefreshInCookie RefreshTransport = "cookie"
)

// TokenResponse is the refresh endpoint's success shape. Refresh is only set
// when the backend rotates refresh tokens.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Refresher exchanges a refresh token for a new access token
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// RefresherFunc adapts a function to the Refresher interface
type RefresherFunc func(ctx context.Context, refreshToken string) (*TokenResponse, error)

// Refresh implements Refresher
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return f(ctx, refreshToken)
}

// HTTPRefresher calls POST <endpoint> on the backend. It must use a plain
// HTTP client: routing the refresh through the authenticated transport would
// recurse into the coordinator.
type HTTPRefresher struct {
	httpClient *http.Client
	endpoint   string
	transport  RefreshTransport
}

// NewHTTPRefresher creates a refresher for endpoint, e.g.
// http://localhost:8000/api/token/refresh/. A nil httpClient uses http.DefaultClient.
func NewHTTPRefresher(httpClient *http.Client, endpoint string, transport RefreshTransport) *HTTPRefresher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if transport == "" {
		transport = RefreshInBody
	}
	return &HTTPRefresher{
		httpClient: httpClient,
		endpoint:   endpoint,
		transport:  transport,
	}
}

// Refresh implements Refresher
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{}
	if r.transport == RefreshInBody && refreshToken != "" {
		payload["refresh"] = refreshToken
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.transport == RefreshInCookie && refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: RefreshTokenKey, Value: refreshToken})
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call refresh endpoint: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp)
	}
	defer resp.Body.Close()

	var tokens TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if tokens.Access == "" {
		return nil, fmt.Errorf("refresh response did not contain an access token")
	}
	return &tokens, nil
}
