package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/web/internal/render"
	"github.com/devilmonastery/tally/web/internal/session"
)

// Handler holds dependencies for all web handlers
type Handler struct {
	sessions  *session.Manager
	registry  *session.Registry
	templates *render.TemplateSet
	loginURL  string
	log       *slog.Logger
}

// New creates a new handler with dependencies
func New(sessions *session.Manager, registry *session.Registry, templates *render.TemplateSet, loginURL string, logger *slog.Logger) *Handler {
	if loginURL == "" {
		loginURL = "/login"
	}
	return &Handler{
		sessions:  sessions,
		registry:  registry,
		templates: templates,
		loginURL:  loginURL,
		log:       logger.With(slog.String("component", "web_handler")),
	}
}

// renderTemplate renders a template with data
func (h *Handler) renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	if h.templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}
	h.log.Debug("rendering template", slog.String("template", name))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Execute(w, name, data); err != nil {
		// Headers are gone already; all we can do is log
		h.log.Error("template rendering failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// wantsJSON reports whether the caller is a script rather than a page load
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// SessionExpired sends the caller back to login: a 401 JSON body for API
// calls, a redirect for page loads
func (h *Handler) SessionExpired(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":     "session expired",
			"login_url": h.loginURL,
		})
		return
	}

	q := url.Values{}
	q.Set("reason", "expired")
	q.Set("next", r.URL.RequestURI())
	http.Redirect(w, r, h.loginURL+"?"+q.Encode(), http.StatusSeeOther)
}

// backendError relays a failed backend call
func (h *Handler) backendError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, client.ErrSessionExpired) {
		h.SessionExpired(w, r)
		return
	}

	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		if len(httpErr.Body) > 0 && json.Valid(httpErr.Body) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(httpErr.StatusCode)
			w.Write(httpErr.Body)
			return
		}
		writeJSON(w, httpErr.StatusCode, map[string]string{"error": httpErr.Message})
		return
	}

	h.log.Error("backend call failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend unavailable"})
}

// safeNext keeps post-login redirects on this site
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
