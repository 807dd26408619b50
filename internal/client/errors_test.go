package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func response(status int, contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMessage string
		wantCode    string
	}{
		{
			name:        "detail string",
			status:      401,
			contentType: "application/json",
			body:        `{"detail":"Given token not valid for any token type","code":"token_not_valid"}`,
			wantMessage: "Given token not valid for any token type",
			wantCode:    "token_not_valid",
		},
		{
			name:        "detail list",
			status:      400,
			contentType: "application/json",
			body:        `{"detail":["Amount must be positive.","Split does not add up."]}`,
			wantMessage: "Amount must be positive.; Split does not add up.",
		},
		{
			name:        "message",
			status:      403,
			contentType: "application/json; charset=utf-8",
			body:        `{"message":"Please verify your email","code":"EMAIL_NOT_VERIFIED"}`,
			wantMessage: "Please verify your email",
			wantCode:    "EMAIL_NOT_VERIFIED",
		},
		{
			name:        "error",
			status:      500,
			contentType: "application/json",
			body:        `{"error":"database unavailable"}`,
			wantMessage: "database unavailable",
		},
		{
			name:        "detail wins over message",
			status:      400,
			contentType: "application/json",
			body:        `{"detail":"first","message":"second","error":"third"}`,
			wantMessage: "first",
		},
		{
			name:        "json without known fields",
			status:      400,
			contentType: "application/json",
			body:        `{"email":["This field is required."]}`,
			wantMessage: "HTTP 400: Bad Request",
		},
		{
			name:        "html body",
			status:      502,
			contentType: "text/html",
			body:        "<html>Bad Gateway</html>",
			wantMessage: "HTTP 502: Bad Gateway",
		},
		{
			name:        "invalid json",
			status:      500,
			contentType: "application/json",
			body:        "{not json",
			wantMessage: "HTTP 500: Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHTTPError(response(tt.status, tt.contentType, tt.body))
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
			if err.Error() != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMessage)
			}
			if err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.wantCode)
			}
			if string(err.Body) != tt.body {
				t.Errorf("Body = %q, want %q", err.Body, tt.body)
			}
		})
	}
}

func TestRefreshError(t *testing.T) {
	cause := &HTTPError{StatusCode: 401, Message: "Token is blacklisted"}
	err := fmt.Errorf("loading groups: %w", &RefreshError{Err: cause})

	if !errors.Is(err, ErrSessionExpired) {
		t.Error("RefreshError should match ErrSessionExpired")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr != cause {
		t.Error("RefreshError should unwrap to its cause")
	}
	if !IsUnauthorized(err) {
		t.Error("IsUnauthorized should see the wrapped 401")
	}
	if got := (&RefreshError{Err: cause}).Error(); got != "token refresh failed: Token is blacklisted" {
		t.Errorf("Error() = %q", got)
	}
	if errors.Is(cause, ErrSessionExpired) {
		t.Error("a plain HTTPError is not a session expiry")
	}
}
