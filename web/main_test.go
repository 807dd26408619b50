package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/config"
	"github.com/devilmonastery/tally/web/internal/handlers"
	"github.com/devilmonastery/tally/web/internal/middleware"
	"github.com/devilmonastery/tally/web/internal/render"
	"github.com/devilmonastery/tally/web/internal/session"
)

// backend fakes the REST API behind the web tier
type backend struct {
	server *httptest.Server

	mu        sync.Mutex
	access    string
	refresh   string
	refreshes int
	lastAuth  string
	lastQuery string
	lastBody  string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{access: "access-1", refresh: "refresh-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			reply(w, http.StatusUnauthorized, map[string]string{"detail": "<b>No active account</b> found with the given credentials"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		reply(w, http.StatusOK, map[string]string{"access": b.access, "refresh": b.refresh})
	})
	mux.HandleFunc("POST /api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.refreshes++
		if body["refresh"] != b.refresh {
			reply(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		b.access = "access-refreshed"
		reply(w, http.StatusOK, map[string]string{"access": b.access})
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.lastAuth = r.Header.Get("Authorization")
		b.lastQuery = r.URL.RawQuery
		b.lastBody = string(data)
		ok := b.lastAuth == "Bearer "+b.access
		b.mu.Unlock()

		if !ok {
			reply(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type", "code": "token_not_valid"})
			return
		}
		switch r.URL.Path {
		case "/api/groups/":
			reply(w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": "g1", "name": "Flat"}}})
		case "/api/expenses/":
			reply(w, http.StatusCreated, map[string]any{"id": "e1"})
		case "/api/auth/users/me/":
			reply(w, http.StatusOK, map[string]any{"id": 1, "username": "ana", "email": "ana@example.com"})
		case "/api/auth/users/logout/":
			reply(w, http.StatusOK, map[string]string{"message": "Logged out"})
		default:
			reply(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		}
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// expireAccess makes the backend reject the current access token
func (b *backend) expireAccess() {
	b.mu.Lock()
	b.access = "access-rotated-" + b.access
	b.mu.Unlock()
}

func (b *backend) revokeRefresh() {
	b.mu.Lock()
	b.refresh = "revoked"
	b.mu.Unlock()
}

func (b *backend) snapshot() (auth, query, body string, refreshes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAuth, b.lastQuery, b.lastBody, b.refreshes
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type webApp struct {
	server   *httptest.Server
	http     *http.Client
	registry *session.Registry
}

func newWebApp(t *testing.T, b *backend) *webApp {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Defaults()
	cfg.API.BaseURL = b.server.URL + "/api"

	templates, err := render.LoadTemplates(nil)
	if err != nil {
		t.Fatal(err)
	}

	registry := session.NewRegistry(client.NewMemoryStore(), newClientFactory(cfg), session.WithLogger(log))
	sessions := session.NewManager([]byte("0123456789abcdef0123456789abcdef"), cfg.Web.SessionMaxAge)
	h := handlers.New(sessions, registry, templates, cfg.Auth.LoginURL, log)
	authMw := middleware.NewAuthMiddleware(sessions, registry, h.SessionExpired, log)

	server := httptest.NewServer(createRouter(h, authMw, sessions, log, true))
	t.Cleanup(server.Close)

	jar, _ := cookiejar.New(nil)
	return &webApp{
		server: server,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		registry: registry,
	}
}

func (a *webApp) do(t *testing.T, method, path, contentType, body string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := a.http.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func (a *webApp) login(t *testing.T) {
	t.Helper()
	resp, body := a.do(t, "POST", "/login", "application/json", `{"username":"ana","password":"secret"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newWebApp(t, newBackend(t))

	for _, path := range []string{"/health", "/metrics"} {
		resp, _ := app.do(t, "GET", path, "", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

func TestNoSession(t *testing.T) {
	app := newWebApp(t, newBackend(t))

	resp, body := app.do(t, "GET", "/api/groups/", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]string
	json.Unmarshal([]byte(body), &got)
	if got["error"] != "session expired" || got["login_url"] != "/login" {
		t.Errorf("body = %s", body)
	}

	resp, _ = app.do(t, "GET", "/session", "", "", "Accept", "text/html")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("page status = %d", resp.StatusCode)
	}
	loc, _ := url.Parse(resp.Header.Get("Location"))
	if loc.Path != "/login" || loc.Query().Get("reason") != "expired" || loc.Query().Get("next") != "/session" {
		t.Errorf("Location = %s", resp.Header.Get("Location"))
	}
}

func TestLoginAndProxy(t *testing.T) {
	b := newBackend(t)
	app := newWebApp(t, b)
	app.login(t)

	resp, body := app.do(t, "GET", "/api/groups/?page=2", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"name":"Flat"`) {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	auth, query, _, _ := b.snapshot()
	if auth != "Bearer access-1" || query != "page=2" {
		t.Errorf("backend saw auth %q query %q", auth, query)
	}

	resp, _ = app.do(t, "POST", "/api/expenses/", "application/json", `{"title":"Dinner"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("POST status = %d", resp.StatusCode)
	}
	if _, _, sent, _ := b.snapshot(); sent != `{"title":"Dinner"}` {
		t.Errorf("backend body = %q", sent)
	}

	resp, body = app.do(t, "GET", "/api/nope/", "", "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Not found.") {
		t.Errorf("404 relay: status = %d, body = %s", resp.StatusCode, body)
	}

	resp, body = app.do(t, "GET", "/session", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"username":"ana"`) {
		t.Errorf("session: status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	b := newBackend(t)
	app := newWebApp(t, b)
	app.login(t)
	b.expireAccess()

	const n = 8
	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := app.http.Get(app.server.URL + "/api/groups/")
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i, s := range statuses {
		if s != http.StatusOK {
			t.Errorf("request %d status = %d", i, s)
		}
	}
	if _, _, _, refreshes := b.snapshot(); refreshes != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes)
	}
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	b := newBackend(t)
	app := newWebApp(t, b)
	app.login(t)
	b.expireAccess()
	b.revokeRefresh()

	for i := 0; i < 2; i++ {
		resp, body := app.do(t, "GET", "/api/groups/", "", "")
		if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "session expired") {
			t.Fatalf("attempt %d: status = %d, body = %s", i, resp.StatusCode, body)
		}
	}
	if _, _, _, refreshes := b.snapshot(); refreshes != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes)
	}
	if app.registry.Len() != 0 {
		t.Errorf("expired session still registered")
	}
}

func TestLoginFormErrors(t *testing.T) {
	app := newWebApp(t, newBackend(t))

	form := url.Values{"username": {"ana"}, "password": {"wrong"}}
	resp, body := app.do(t, "POST", "/login", "application/x-www-form-urlencoded", form.Encode())
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "No active account found") || strings.Contains(body, "<b>") {
		t.Errorf("error not sanitised: %s", body)
	}
	if app.registry.Len() != 0 {
		t.Error("failed login left a session behind")
	}

	resp, _ = app.do(t, "POST", "/login", "application/x-www-form-urlencoded", "username=ana")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing password status = %d", resp.StatusCode)
	}
}

func TestLoginFormRedirects(t *testing.T) {
	app := newWebApp(t, newBackend(t))

	tests := []struct {
		next string
		want string
	}{
		{"/session", "/session"},
		{"//evil.example.com", "/"},
		{"https://evil.example.com", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			form := url.Values{"username": {"ana"}, "password": {"secret"}, "next": {tt.next}}
			resp, _ := app.do(t, "POST", "/login", "application/x-www-form-urlencoded", form.Encode())
			if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != tt.want {
				t.Errorf("status = %d, Location = %q", resp.StatusCode, resp.Header.Get("Location"))
			}
		})
	}
}

func TestLogout(t *testing.T) {
	b := newBackend(t)
	app := newWebApp(t, b)
	app.login(t)

	resp, _ := app.do(t, "POST", "/logout", "application/json", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	if auth, _, _, _ := b.snapshot(); auth != "Bearer access-1" {
		t.Errorf("backend logout saw auth %q", auth)
	}

	resp, _ = app.do(t, "GET", "/api/groups/", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("after logout status = %d", resp.StatusCode)
	}
}
