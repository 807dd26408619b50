package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devilmonastery/tally/internal/pkg/logger"
	"github.com/devilmonastery/tally/internal/pkg/metrics"
)

// DefaultRefreshTimeout bounds a single call to the refresh endpoint
const DefaultRefreshTimeout = 15 * time.Second

// Navigator is told when the session cannot be recovered and the user has
// to log in again. It is called once per failed refresh, not once per request.
type Navigator interface {
	RedirectToLogin(ctx context.Context, cause error)
}

// NavigatorFunc adapts a function to the Navigator interface
type NavigatorFunc func(ctx context.Context, cause error)

// RedirectToLogin implements Navigator
func (f NavigatorFunc) RedirectToLogin(ctx context.Context, cause error) {
	f(ctx, cause)
}

type refreshResult struct {
	token string
	err   error
}

// Coordinator makes sure at most one refresh call is in flight. Requests that
// need a new access token while a refresh is running wait for its result
// instead of starting their own, and are released in arrival order.
//
// Several clients can share one Coordinator when they share a credential store.
type Coordinator struct {
	store     CredentialStore
	refresher Refresher
	navigator Navigator
	timeout   time.Duration
	log       *slog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithNavigator sets the navigator notified on unrecoverable refresh failures
func WithNavigator(n Navigator) CoordinatorOption {
	return func(c *Coordinator) {
		c.navigator = n
	}
}

// WithRefreshTimeout overrides DefaultRefreshTimeout
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCoordinatorLogger sets the logger
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = l.With(slog.String("component", "refresh_coordinator"))
	}
}

// NewCoordinator creates a coordinator that refreshes tokens held in store
func NewCoordinator(store CredentialStore, refresher Refresher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		timeout:   DefaultRefreshTimeout,
		log:       slog.Default().With(slog.String("component", "refresh_coordinator")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh returns a new access token. If a refresh is already running the
// caller waits for its outcome; otherwise the caller performs the refresh.
//
// A caller whose ctx ends while waiting returns ctx.Err(); the in-flight
// refresh is unaffected and its result is simply not observed.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		queued := len(c.waiters)
		c.mu.Unlock()

		metrics.RefreshWaiters.Inc()
		c.log.Debug("refresh in flight, waiting", slog.Int("position", queued))

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	return c.lead(ctx)
}

// Refreshing reports whether a refresh call is in flight
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Waiting returns the number of callers queued behind the in-flight refresh
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// lead performs the refresh call and settles every waiter with its outcome
func (c *Coordinator) lead(ctx context.Context) (string, error) {
	settled := false
	defer func() {
		// Only reached without settling if the refresher panicked
		if !settled {
			c.release(refreshResult{err: &RefreshError{Err: errors.New("refresh aborted")}})
		}
	}()

	token, err := c.exchange(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		refreshErr := &RefreshError{Err: err}

		if clearErr := ClearCredentials(c.store); clearErr != nil {
			c.log.Warn("failed to clear credentials after refresh failure",
				slog.String("error", clearErr.Error()))
		}
		c.release(refreshResult{err: refreshErr})
		settled = true

		c.log.Warn("token refresh failed, login required", slog.String("error", err.Error()))
		if c.navigator != nil {
			c.navigator.RedirectToLogin(ctx, refreshErr)
		}
		return "", refreshErr
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	c.release(refreshResult{token: token})
	settled = true

	c.log.Info("successfully refreshed token", slog.String("preview", logger.TokenPreview(token)))
	return token, nil
}

// exchange calls the refresher and persists the result
func (c *Coordinator) exchange(ctx context.Context) (string, error) {
	refreshToken, err := lookup(c.store, RefreshTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}

	// One caller giving up must not log every other waiter out
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	resp, err := c.refresher.Refresh(refreshCtx, refreshToken)
	if err != nil {
		return "", err
	}

	if err := SaveCredentials(c.store, Credentials{Access: resp.Access, Refresh: resp.Refresh}); err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}
	return resp.Access, nil
}

// release hands res to every waiter in arrival order and clears the flag in
// the same critical section, so the next 401 starts a fresh refresh
func (c *Coordinator) release(res refreshResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Waiter channels are buffered, so none of these sends block
	for _, ch := range c.waiters {
		ch <- res
	}
	c.waiters = nil
	c.refreshing = false
}
