package client

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "normalize group ID",
			path:     "/api/groups/42/",
			expected: "/api/groups/:id/",
		},
		{
			name:     "normalize nested IDs",
			path:     "/api/groups/7/members/19/",
			expected: "/api/groups/:id/members/:id/",
		},
		{
			name:     "normalize UUID",
			path:     "/api/expenses/3f2504e0-4f89-11d3-9a0c-0305e82c3301/",
			expected: "/api/expenses/:id/",
		},
		{
			name:     "no normalization needed",
			path:     "/api/token/refresh/",
			expected: "/api/token/refresh/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeRoute(tt.path)
			if result != tt.expected {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   string
	}{
		{name: "bad request", statusCode: 400, expected: "bad_request"},
		{name: "unauthorized", statusCode: 401, expected: "unauthorized"},
		{name: "forbidden", statusCode: 403, expected: "forbidden"},
		{name: "not found", statusCode: 404, expected: "not_found"},
		{name: "rate limited", statusCode: 429, expected: "rate_limited"},
		{name: "server error", statusCode: 502, expected: "server_error"},
		{name: "client error", statusCode: 418, expected: "client_error"},
		{name: "unknown", statusCode: 200, expected: "unknown"},
		{name: "timeout", err: errors.New("context deadline exceeded"), expected: "timeout"},
		{name: "canceled", err: errors.New("context canceled"), expected: "canceled"},
		{name: "connection", err: errors.New("dial tcp: connection refused"), expected: "connection"},
		{name: "tls", err: errors.New("tls: handshake failure"), expected: "tls"},
		{name: "network", err: errors.New("no route to host"), expected: "network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyError(tt.statusCode, tt.err)
			if result != tt.expected {
				t.Errorf("classifyError(%d, %v) = %q, want %q", tt.statusCode, tt.err, result, tt.expected)
			}
		})
	}
}

func TestMetricsTransport_PassesThrough(t *testing.T) {
	want := errors.New("no route to host")
	rt := NewMetricsTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, want
	}))

	req, _ := http.NewRequest(http.MethodGet, "http://backend.test/api/groups/1/", strings.NewReader(""))
	if _, err := rt.RoundTrip(req); !errors.Is(err, want) {
		t.Errorf("RoundTrip error = %v, want %v", err, want)
	}
}
