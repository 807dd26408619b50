package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devilmonastery/tally/internal/pkg/idgen"
)

const (
	// SessionName is the name of the session cookie
	SessionName = "tally_session"

	// IDKey is the session key holding the session id. Tokens never go in the cookie.
	IDKey = "sid"
)

// ErrNoSession is returned when the request carries no usable session cookie
var ErrNoSession = errors.New("no session")

// Manager wraps gorilla/sessions for our use case
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a new session manager
// secretKey should be 32 bytes for AES-256
func NewManager(secretKey []byte, maxAge time.Duration) *Manager {
	store := sessions.NewCookieStore(secretKey)

	// Configure session options
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store: store,
	}
}

// ID returns the session id carried by the request
func (m *Manager) ID(r *http.Request) (string, error) {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", ErrNoSession
	}

	id, ok := session.Values[IDKey].(string)
	if !ok || id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

// NewID returns a fresh session id
func NewID() string {
	return idgen.GenerateID()
}

// Bind writes a cookie carrying id, replacing any previous session id
func (m *Manager) Bind(r *http.Request, w http.ResponseWriter, id string) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		// Undecodable cookie (e.g. rotated secret), start over
		session, _ = m.store.New(r, SessionName)
	}

	session.Values[IDKey] = id
	return session.Save(r, w)
}

// Destroy removes the session cookie (logout)
func (m *Manager) Destroy(r *http.Request, w http.ResponseWriter) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil // Session doesn't exist, nothing to clear
	}

	// Set MaxAge to -1 to delete the session
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
