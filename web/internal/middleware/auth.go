package middleware

import (
	"log/slog"
	"net/http"

	"github.com/devilmonastery/tally/web/internal/session"
)

// AuthMiddleware resolves the browser session to its API client
type AuthMiddleware struct {
	sessions *session.Manager
	registry *session.Registry
	denied   http.HandlerFunc
	log      *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware. denied answers requests
// without a live session.
func NewAuthMiddleware(sessions *session.Manager, registry *session.Registry, denied http.HandlerFunc, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		registry: registry,
		denied:   denied,
		log:      logger.With(slog.String("component", "auth_middleware")),
	}
}

// RequireSession puts the session's entry on the request context. Token
// refresh happens later, inside the entry's client.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.sessions.ID(r)
		if err != nil {
			m.log.Debug("no session cookie", slog.String("path", r.URL.Path))
			m.denied(w, r)
			return
		}

		entry, err := m.registry.Get(id)
		if err != nil {
			m.log.Error("failed to create session client", slog.String("error", err.Error()))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if entry.Expired() {
			m.log.Debug("session already expired", slog.String("session_id", id))
			if err := m.registry.Remove(id); err != nil {
				m.log.Warn("failed to remove expired session", slog.String("error", err.Error()))
			}
			m.denied(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithEntry(r.Context(), entry)))
	})
}
