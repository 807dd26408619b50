package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default endpoint paths, relative to the API base URL
const (
	DefaultTokenPath   = "/token/"
	DefaultRefreshPath = "/token/refresh/"
	DefaultTimeout     = 30 * time.Second
)

// Client wraps an HTTP client with bearer authentication and automatic token refresh
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       CredentialStore
	coordinator *Coordinator
	log         *slog.Logger
}

type options struct {
	baseTransport    http.RoundTripper
	timeout          time.Duration
	refreshPath      string
	refreshTransport RefreshTransport
	refreshTimeout   time.Duration
	refresher        Refresher
	navigator        Navigator
	coordinator      *Coordinator
	logger           *slog.Logger
}

// Option configures a Client
type Option func(*options)

// WithBaseTransport sets the round tripper requests are finally sent through
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.baseTransport = rt }
}

// WithTimeout bounds a whole call, including a refresh-and-retry
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRefreshPath overrides DefaultRefreshPath
func WithRefreshPath(path string) Option {
	return func(o *options) { o.refreshPath = path }
}

// WithRefreshTransport selects body or cookie delivery of the refresh token
func WithRefreshTransport(rt RefreshTransport) Option {
	return func(o *options) { o.refreshTransport = rt }
}

// WithClientRefreshTimeout bounds each refresh call
func WithClientRefreshTimeout(d time.Duration) Option {
	return func(o *options) { o.refreshTimeout = d }
}

// WithRefresher replaces the HTTP refresher
func WithRefresher(r Refresher) Option {
	return func(o *options) { o.refresher = r }
}

// WithLoginNavigator sets who is told to send the user back to login
func WithLoginNavigator(n Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// WithCoordinator shares an existing coordinator (and its single in-flight
// refresh) with this client. Refresh options are ignored when it is set.
func WithCoordinator(c *Coordinator) Option {
	return func(o *options) { o.coordinator = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8000/api
func New(baseURL string, store CredentialStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	o := options{
		timeout:     DefaultTimeout,
		refreshPath: DefaultRefreshPath,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := NewMetricsTransport(o.baseTransport)

	coordinator := o.coordinator
	if coordinator == nil {
		refresher := o.refresher
		if refresher == nil {
			refreshClient := &http.Client{Transport: base, Timeout: o.timeout}
			refresher = NewHTTPRefresher(refreshClient, joinURL(baseURL, o.refreshPath), o.refreshTransport)
		}
		coordinator = NewCoordinator(store, refresher,
			WithNavigator(o.navigator),
			WithRefreshTimeout(o.refreshTimeout),
			WithCoordinatorLogger(o.logger),
		)
	}

	transport := NewTransport(base, store, coordinator)
	transport.log = o.logger.With(slog.String("component", "auth_transport"))

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   o.timeout,
		},
		store:       store,
		coordinator: coordinator,
		log:         o.logger.With(slog.String("component", "api_client")),
	}, nil
}

// Store returns the credential store
func (c *Client) Store() CredentialStore {
	return c.store
}

// Coordinator returns the refresh coordinator (useful for sharing)
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// HTTPClient returns the authenticated *http.Client for callers that want
// the plain net/http surface
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// URL resolves path against the base URL. Absolute URLs are returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return joinURL(c.baseURL, path)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// RequestOption adjusts an outgoing request
type RequestOption func(*http.Request)

// WithHeader sets a request header. Headers set here are never overwritten,
// including Authorization.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithCookie adds a cookie to the request
func WithCookie(cookie *http.Cookie) RequestOption {
	return func(r *http.Request) { r.AddCookie(cookie) }
}

// WithQuery adds query parameters
func WithQuery(values url.Values) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		r.URL.RawQuery = q.Encode()
	}
}

// NewRequest builds a JSON request for path. body is marshalled unless it is
// nil, an io.Reader or a []byte.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any, opts ...RequestOption) (*http.Request, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// Do sends req and reads the whole response. Non-2xx responses become *HTTPError.
func (c *Client) Do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Surface refresh failures as-is rather than inside *url.Error
		var refreshErr *RefreshError
		if errors.As(err, &refreshErr) {
			return nil, refreshErr
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := NewHTTPError(resp)
		c.log.Debug("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", httpErr.StatusCode),
			slog.String("error", httpErr.Message))
		return nil, httpErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	req, err := c.NewRequest(ctx, method, path, body, opts...)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Get sends a GET request
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, opts...)
}

// Post sends a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, body, opts...)
}

// Put sends a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPut, path, body, opts...)
}

// Patch sends a PATCH request with a JSON body
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPatch, path, body, opts...)
}

// Delete sends a DELETE request
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, opts...)
}

// Refresh forces a token refresh through the coordinator
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.coordinator.Refresh(ctx)
}
