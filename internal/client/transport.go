package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/tally/internal/pkg/idgen"
	"github.com/devilmonastery/tally/internal/pkg/logger"
)

type skipAuthKey struct{}

// WithoutAuth marks requests made with ctx as anonymous: no bearer token is
// attached and a 401 is returned as-is. Used for login and registration.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey{}, true)
}

func skipsAuth(ctx context.Context) bool {
	skip, _ := ctx.Value(skipAuthKey{}).(bool)
	return skip
}

// pendingRequest tracks one caller request across its (at most two) attempts
type pendingRequest struct {
	req       *http.Request
	requestID string
	retried   bool
}

// replayable reports whether the body can be sent a second time
func (p *pendingRequest) replayable() bool {
	return p.req.Body == nil || p.req.Body == http.NoBody || p.req.GetBody != nil
}

// Transport is an http.RoundTripper that attaches the stored access token and
// recovers once from an expired token by refreshing through the Coordinator
type Transport struct {
	base        http.RoundTripper
	store       CredentialStore
	coordinator *Coordinator
	log         *slog.Logger
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, store CredentialStore, coordinator *Coordinator) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:        base,
		store:       store,
		coordinator: coordinator,
		log:         slog.Default().With(slog.String("component", "auth_transport")),
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if skipsAuth(ctx) {
		return t.base.RoundTrip(req)
	}

	p := &pendingRequest{req: req, requestID: req.Header.Get("X-Request-ID")}
	if p.requestID == "" {
		p.requestID = idgen.GenerateID()
	}

	// A caller-supplied Authorization header is theirs to manage
	callerAuth := req.Header.Get("Authorization") != ""

	token, err := lookup(t.store, AccessTokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	resp, err := t.send(p, token, callerAuth)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || callerAuth {
		return resp, nil
	}
	if !p.replayable() {
		t.log.Warn("not retrying unauthorized request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("reason", ErrNotReplayable.Error()))
		return resp, nil
	}

	p.retried = true
	drainAndClose(resp)

	t.log.Info("access token rejected, refreshing",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("request_id", p.requestID))

	newToken, err := t.renewedToken(ctx, token)
	if err != nil {
		return nil, err
	}

	t.log.Debug("retrying request with refreshed token",
		slog.String("request_id", p.requestID),
		slog.String("preview", logger.TokenPreview(newToken)))
	return t.send(p, newToken, false)
}

// renewedToken returns the token to retry with. If another refresh already
// replaced the token this request was sent with, that one is used directly.
func (t *Transport) renewedToken(ctx context.Context, sent string) (string, error) {
	current, err := lookup(t.store, AccessTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	if current != "" && current != sent {
		return current, nil
	}
	return t.coordinator.Refresh(ctx)
}

// send dispatches one attempt of p on a clone of the caller's request
func (t *Transport) send(p *pendingRequest, token string, callerAuth bool) (*http.Response, error) {
	out := p.req.Clone(p.req.Context())
	if p.retried && p.req.GetBody != nil {
		body, err := p.req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
		out.Body = body
	}

	out.Header.Set("X-Request-ID", p.requestID)
	if token != "" && !callerAuth {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base.RoundTrip(out)
}

// drainAndClose lets the connection be reused before the retry
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
