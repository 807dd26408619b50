package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/pkg/logger"
)

// Credentials is the on-disk form of a context's login
type Credentials struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Username     string    `json:"username,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"` // access token expiry, read from its exp claim
}

// IsExpired checks if the access token is expired
func (c *Credentials) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// FileCredentials is a client.CredentialStore persisted as a JSON file per context
type FileCredentials struct {
	path string
	mu   sync.Mutex
}

// NewFileCredentials returns the store for the named context, kept at
// ~/.config/tally/credentials-<context>.json
func NewFileCredentials(contextName string) (*FileCredentials, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	name := slug.Make(contextName)
	if name == "" {
		name = "default"
	}
	configDir := filepath.Join(homeDir, ".config", "tally")
	return &FileCredentials{
		path: filepath.Join(configDir, fmt.Sprintf("credentials-%s.json", name)),
	}, nil
}

// Path returns the credentials file location
func (f *FileCredentials) Path() string {
	return f.path
}

// Get implements client.CredentialStore
func (f *FileCredentials) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return "", err
	}

	var value string
	switch key {
	case client.AccessTokenKey:
		value = creds.AccessToken
	case client.RefreshTokenKey:
		value = creds.RefreshToken
	}
	if value == "" {
		return "", client.ErrNoCredential
	}
	return value, nil
}

// Set implements client.CredentialStore. Only the two token keys are kept.
func (f *FileCredentials) Set(key, value string, _ client.SetOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}

	switch key {
	case client.AccessTokenKey:
		creds.AccessToken = value
		creds.ExpiresAt = time.Time{}
		if exp, err := client.TokenExpiry(value); err == nil {
			creds.ExpiresAt = exp
		} else {
			slog.Debug("could not read token expiry",
				slog.String("component", "cli-token"),
				slog.String("error", err.Error()))
		}
		slog.Debug("saving access token",
			slog.String("component", "cli-token"),
			slog.String("preview", logger.TokenPreview(value)))
	case client.RefreshTokenKey:
		creds.RefreshToken = value
	default:
		return fmt.Errorf("unsupported credential key %q", key)
	}

	return f.save(creds)
}

// Clear implements client.CredentialStore. The file is removed once both
// tokens are gone.
func (f *FileCredentials) Clear(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}

	switch key {
	case client.AccessTokenKey:
		creds.AccessToken = ""
		creds.ExpiresAt = time.Time{}
	case client.RefreshTokenKey:
		creds.RefreshToken = ""
	default:
		return nil
	}

	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return f.remove()
	}
	return f.save(creds)
}

// SetUsername records who logged in, for auth status
func (f *FileCredentials) SetUsername(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}
	creds.Username = username
	return f.save(creds)
}

// Load returns the stored credentials; an empty struct if not logged in
func (f *FileCredentials) Load() (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileCredentials) load() (*Credentials, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Credentials{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

func (f *FileCredentials) save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write with restricted permissions (read/write for owner only)
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (f *FileCredentials) remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
