package client

import (
	"errors"
	"sync"
	"time"
)

// Keys under which the credential pair is stored
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// ErrNoCredential is returned by a CredentialStore when the key is not set
var ErrNoCredential = errors.New("no credential stored")

// SetOptions mirrors the cookie attributes the browser clients used when
// persisting tokens. Stores ignore the fields they cannot express.
type SetOptions struct {
	Path   string
	MaxAge time.Duration // zero means no expiry
}

// CredentialStore is a small key-value surface for persisted credentials.
// Different implementations keep tokens in memory, files, redis, etc.
type CredentialStore interface {
	// Get returns the value for key, or ErrNoCredential if it is not set
	Get(key string) (string, error)

	// Set stores value under key
	Set(key, value string, opts SetOptions) error

	// Clear removes key. Clearing a missing key is not an error.
	Clear(key string) error
}

// Credentials is the access/refresh token pair issued at login
type Credentials struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// SaveCredentials stores both halves of a credential pair. An empty refresh
// token leaves the stored one untouched.
func SaveCredentials(store CredentialStore, creds Credentials) error {
	opts := SetOptions{Path: "/"}
	if err := store.Set(AccessTokenKey, creds.Access, opts); err != nil {
		return err
	}
	if creds.Refresh != "" {
		if err := store.Set(RefreshTokenKey, creds.Refresh, opts); err != nil {
			return err
		}
	}
	return nil
}

// ClearCredentials removes both tokens, returning the first error seen
func ClearCredentials(store CredentialStore) error {
	accessErr := store.Clear(AccessTokenKey)
	refreshErr := store.Clear(RefreshTokenKey)
	return errors.Join(accessErr, refreshErr)
}

// lookup treats ErrNoCredential as an empty value
func lookup(store CredentialStore, key string) (string, error) {
	value, err := store.Get(key)
	if errors.Is(err, ErrNoCredential) {
		return "", nil
	}
	return value, err
}

// MemoryStore is an in-memory CredentialStore useful for tests or
// short-lived processes. MaxAge is honoured lazily on Get.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get implements CredentialStore
func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNoCredential
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		return "", ErrNoCredential
	}
	return entry.value, nil
}

// Set implements CredentialStore
func (m *MemoryStore) Set(key, value string, opts SetOptions) error {
	entry := memoryEntry{value: value}
	if opts.MaxAge > 0 {
		entry.expiresAt = m.now().Add(opts.MaxAge)
	}
	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()
	return nil
}

// Clear implements CredentialStore
func (m *MemoryStore) Clear(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// prefixedStore namespaces every key of an underlying store
type prefixedStore struct {
	base   CredentialStore
	prefix string
}

// WithKeyPrefix returns a view of store where every key is prefixed.
// The web front-end uses it to keep one credential pair per browser session.
func WithKeyPrefix(store CredentialStore, prefix string) CredentialStore {
	return &prefixedStore{base: store, prefix: prefix}
}

func (p *prefixedStore) Get(key string) (string, error) {
	return p.base.Get(p.prefix + key)
}

func (p *prefixedStore) Set(key, value string, opts SetOptions) error {
	return p.base.Set(p.prefix+key, value, opts)
}

func (p *prefixedStore) Clear(key string) error {
	return p.base.Clear(p.prefix + key)
}
