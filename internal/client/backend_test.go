package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeBackend plays the REST API: it accepts exactly one access token at a
// time and rotates it on every successful refresh
type fakeBackend struct {
	server *httptest.Server

	mu          sync.Mutex
	valid       string
	generation  int
	failRefresh bool
	gate        chan struct{} // when set, refresh blocks until it is closed
	seenAuth    map[string]string
	refreshBody []string
	echoBodies  []string

	refreshCalls atomic.Int32
}

func newFakeBackend(t *testing.T, valid string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{valid: valid, seenAuth: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/refresh/", b.handleRefresh)
	mux.HandleFunc("/api/fail/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database unavailable"})
	})
	mux.HandleFunc("/api/always401/", func(w http.ResponseWriter, r *http.Request) {
		b.recordAuth(r)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "not allowed", "code": "token_not_valid"})
	})
	mux.HandleFunc("/api/", b.handleResource)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) baseURL() string {
	return b.server.URL + "/api"
}

func (b *fakeBackend) recordAuth(r *http.Request) {
	b.mu.Lock()
	b.seenAuth[r.URL.Path] = r.Header.Get("Authorization")
	b.mu.Unlock()
}

func (b *fakeBackend) authFor(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seenAuth[path]
}

// rotate invalidates the current access token without telling the client
func (b *fakeBackend) rotate() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.valid = fmt.Sprintf("access-%d", b.generation)
	return b.valid
}

func (b *fakeBackend) current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

func (b *fakeBackend) refreshBodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.refreshBody...)
}

func (b *fakeBackend) postedBodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.echoBodies...)
}

func (b *fakeBackend) setFailRefresh(fail bool) {
	b.mu.Lock()
	b.failRefresh = fail
	b.mu.Unlock()
}

func (b *fakeBackend) setGate(gate chan struct{}) {
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
}

func (b *fakeBackend) handleResource(w http.ResponseWriter, r *http.Request) {
	b.recordAuth(r)
	if r.Header.Get("Authorization") != "Bearer "+b.current() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		})
		return
	}
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.echoBodies = append(b.echoBodies, string(body))
		b.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.refreshBody = append(b.refreshBody, string(body))
	gate := b.gate
	fail := b.failRefresh
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	var payload struct {
		Refresh string `json:"refresh"`
	}
	_ = json.Unmarshal(body, &payload)
	if cookie, err := r.Cookie("refresh_token"); err == nil {
		payload.Refresh = cookie.Value
	}
	if payload.Refresh == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No valid refresh token found",
			"code":   "token_not_valid",
		})
		return
	}
	if fail {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": b.rotate()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// countingNavigator records RedirectToLogin calls
type countingNavigator struct {
	calls atomic.Int32
}

func (n *countingNavigator) RedirectToLogin(_ context.Context, _ error) {
	n.calls.Add(1)
}

func newTestClient(t *testing.T, b *fakeBackend, store CredentialStore, opts ...Option) *Client {
	t.Helper()
	c, err := New(b.baseURL(), store, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func mustStore(t *testing.T, access, refresh string) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if access != "" {
		_ = store.Set(AccessTokenKey, access, SetOptions{})
	}
	if refresh != "" {
		_ = store.Set(RefreshTokenKey, refresh, SetOptions{})
	}
	return store
}

func storedValue(store CredentialStore, key string) string {
	v, err := store.Get(key)
	if err != nil {
		return ""
	}
	return v
}
