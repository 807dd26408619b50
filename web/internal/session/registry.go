package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devilmonastery/tally/internal/api"
	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/pkg/logger"
	"github.com/devilmonastery/tally/internal/pkg/metrics"
)

// DefaultIdleTimeout is how long an unused session keeps its client
const DefaultIdleTimeout = 30 * time.Minute

// ClientFactory builds the API client for one session. store is already
// namespaced to the session; nav must be passed on to the client.
type ClientFactory func(store client.CredentialStore, nav client.Navigator) (*client.Client, error)

// Entry is one browser session's API access
type Entry struct {
	ID     string
	Client *client.Client
	API    *api.API

	lastUsed atomic.Int64 // unix nanos
	expired  atomic.Bool
}

// Expired reports whether a refresh has failed for this session
func (e *Entry) Expired() bool {
	return e.expired.Load()
}

// Registry keeps one client per session id. Each client has its own refresh
// coordinator, so concurrent requests of one browser share a single refresh
// while different users never wait on each other.
type Registry struct {
	store      client.CredentialStore
	newClient  ClientFactory
	maxAge     time.Duration
	idle       time.Duration
	now        func() time.Time
	log        *slog.Logger
	authOption []api.AuthOption

	mu      sync.Mutex
	entries map[string]*Entry
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithIdleTimeout overrides DefaultIdleTimeout
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idle = d
		}
	}
}

// WithCredentialMaxAge makes stored tokens expire with the browser session
func WithCredentialMaxAge(d time.Duration) RegistryOption {
	return func(r *Registry) { r.maxAge = d }
}

// WithAuthOptions is passed to every session's api.AuthService
func WithAuthOptions(opts ...api.AuthOption) RegistryOption {
	return func(r *Registry) { r.authOption = opts }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = l.With(slog.String("component", "session_registry"))
	}
}

// NewRegistry creates a registry storing credentials in store
func NewRegistry(store client.CredentialStore, newClient ClientFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:     store,
		newClient: newClient,
		idle:      DefaultIdleTimeout,
		now:       time.Now,
		log:       slog.Default().With(slog.String("component", "session_registry")),
		entries:   make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// credentials returns the store view of one session
func (r *Registry) credentials(id string) client.CredentialStore {
	store := client.WithKeyPrefix(r.store, "session:"+id+":")
	if r.maxAge > 0 {
		store = &maxAgeStore{CredentialStore: store, maxAge: r.maxAge}
	}
	return store
}

// Get returns the entry for id, creating its client on first use
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.lastUsed.Store(r.now().UnixNano())
		return e, nil
	}

	e := &Entry{ID: id}
	log := logger.WithSession(r.log, id)
	nav := client.NavigatorFunc(func(ctx context.Context, cause error) {
		e.expired.Store(true)
		metrics.SessionsExpired.Inc()
		log.Info("session expired, login required", slog.String("cause", cause.Error()))
	})

	c, err := r.newClient(r.credentials(id), nav)
	if err != nil {
		return nil, err
	}
	e.Client = c
	e.API = api.New(c, r.authOption...)
	e.lastUsed.Store(r.now().UnixNano())

	r.entries[id] = e
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	log.Debug("session client created")
	return e, nil
}

// Remove drops the session's client and its stored credentials
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	delete(r.entries, id)
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	r.mu.Unlock()

	return client.ClearCredentials(r.credentials(id))
}

// Len returns the number of live session clients
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops clients unused for longer than the idle timeout and returns how
// many were dropped. Stored credentials are kept, so a returning browser gets
// a new client for the same login.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, e := range r.entries {
		if e.lastUsed.Load() < cutoff {
			delete(r.entries, id)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.ActiveSessions.Set(float64(len(r.entries)))
		r.log.Debug("swept idle sessions", slog.Int("dropped", dropped), slog.Int("remaining", len(r.entries)))
	}
	return dropped
}

// Run sweeps on every tick until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// maxAgeStore applies a fixed MaxAge to every Set
type maxAgeStore struct {
	client.CredentialStore
	maxAge time.Duration
}

func (s *maxAgeStore) Set(key, value string, opts client.SetOptions) error {
	if opts.MaxAge == 0 {
		opts.MaxAge = s.maxAge
	}
	return s.CredentialStore.Set(key, value, opts)
}
