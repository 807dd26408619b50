package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrSessionExpired matches every error produced by a failed token refresh
	ErrSessionExpired = errors.New("session expired")

	// ErrNotReplayable is logged when a 401 cannot be retried because the
	// request body cannot be read a second time
	ErrNotReplayable = errors.New("request body cannot be replayed")
)

// maxErrorBody caps how much of an error response is kept in memory
const maxErrorBody = 64 << 10

// HTTPError is returned for any non-2xx backend response
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
	Code       string // backend error code, e.g. EMAIL_NOT_VERIFIED or token_not_valid
	Body       []byte
}

func (e *HTTPError) Error() string {
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// errorBody covers the shapes DRF and the custom auth views return
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// NewHTTPError reads and closes resp.Body and builds an HTTPError from it
func NewHTTPError(resp *http.Response) *HTTPError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       body,
	}

	var parsed errorBody
	if strings.Contains(resp.Header.Get("Content-Type"), "json") && json.Unmarshal(body, &parsed) == nil {
		e.Code = parsed.Code
		switch {
		case len(parsed.Detail) > 0:
			e.Message = detailString(parsed.Detail)
		case parsed.Message != "":
			e.Message = parsed.Message
		case parsed.Error != "":
			e.Message = parsed.Error
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	}
	return e
}

// detailString flattens DRF's "detail", which is usually a string but can be
// a list of strings for validation errors
func detailString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}

// RefreshError is returned to every request that was waiting on a refresh
// that failed. It unwraps to the refresher's error.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSessionExpired) match any refresh failure
func (e *RefreshError) Is(target error) bool {
	return target == ErrSessionExpired
}
