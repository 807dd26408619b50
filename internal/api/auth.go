package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

// AuthService covers login, registration and account recovery
type AuthService struct {
	c         *client.Client
	tokenPath string
	log       *slog.Logger
}

// AuthOption configures an AuthService
type AuthOption func(*AuthService)

// WithTokenPath overrides client.DefaultTokenPath
func WithTokenPath(path string) AuthOption {
	return func(s *AuthService) {
		if path != "" {
			s.tokenPath = path
		}
	}
}

// NewAuthService creates an AuthService
func NewAuthService(c *client.Client, opts ...AuthOption) *AuthService {
	s := &AuthService{
		c:         c,
		tokenPath: client.DefaultTokenPath,
		log:       slog.Default().With(slog.String("component", "auth_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges a username and password for a token pair and stores it
func (s *AuthService) Login(ctx context.Context, username, password string) (*client.Credentials, error) {
	resp, err := s.c.Post(client.WithoutAuth(ctx), s.tokenPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var tokens client.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return nil, err
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return nil, fmt.Errorf("login response did not contain a token pair")
	}

	creds := client.Credentials{Access: tokens.Access, Refresh: tokens.Refresh}
	if err := client.SaveCredentials(s.c.Store(), creds); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	s.log.Info("logged in", slog.String("username", username))
	return &creds, nil
}

// LoginEmail signs in through the account endpoint, which answers with the
// user and sets the tokens as cookies
func (s *AuthService) LoginEmail(ctx context.Context, email, password string) (*entities.AuthResponse, error) {
	resp, err := s.c.Post(client.WithoutAuth(ctx), "/auth/users/login/", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var body struct {
		entities.AuthResponse
		client.TokenResponse
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	stored := 0
	cookies := (&http.Response{Header: resp.Header}).Cookies()
	for _, cookie := range cookies {
		if cookie.Name != client.AccessTokenKey && cookie.Name != client.RefreshTokenKey {
			continue
		}
		opts := client.SetOptions{Path: "/"}
		if cookie.MaxAge > 0 {
			opts.MaxAge = time.Duration(cookie.MaxAge) * time.Second
		}
		if err := s.c.Store().Set(cookie.Name, cookie.Value, opts); err != nil {
			return nil, fmt.Errorf("failed to save credentials: %w", err)
		}
		stored++
	}

	// Older backends return the pair in the body instead
	if stored == 0 && body.Access != "" {
		err := client.SaveCredentials(s.c.Store(), client.Credentials{Access: body.Access, Refresh: body.Refresh})
		if err != nil {
			return nil, fmt.Errorf("failed to save credentials: %w", err)
		}
		stored++
	}
	if stored == 0 {
		return nil, fmt.Errorf("login response carried no tokens")
	}

	s.log.Info("logged in", slog.String("email", email))
	return &body.AuthResponse, nil
}

// Register creates an account. The backend emails a verification link.
func (s *AuthService) Register(ctx context.Context, data entities.RegisterData) (*entities.User, error) {
	resp, err := s.c.Post(client.WithoutAuth(ctx), "/auth/users/", data)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return decode[entities.User](resp)
}

// Logout tells the backend to blacklist the refresh token, then clears the
// stored credentials whatever the backend said
func (s *AuthService) Logout(ctx context.Context) error {
	var opts []client.RequestOption
	if refresh, err := s.c.Store().Get(client.RefreshTokenKey); err == nil && refresh != "" {
		opts = append(opts, client.WithCookie(&http.Cookie{Name: client.RefreshTokenKey, Value: refresh}))
	}
	if _, err := s.c.Post(ctx, "/auth/users/logout/", nil, opts...); err != nil {
		s.log.Warn("logout request failed", slog.String("error", err.Error()))
	}
	if err := client.ClearCredentials(s.c.Store()); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Me returns the signed-in user
func (s *AuthService) Me(ctx context.Context) (*entities.User, error) {
	resp, err := s.c.Get(ctx, "/auth/users/me/")
	if err != nil {
		return nil, err
	}
	return decode[entities.User](resp)
}

// ShopUser returns the signed-in user from the shop profile endpoint
func (s *AuthService) ShopUser(ctx context.Context) (*entities.User, error) {
	resp, err := s.c.Get(ctx, "/user/")
	if err != nil {
		return nil, err
	}
	return decode[entities.User](resp)
}

// VerifyEmail confirms an address with the token from the verification email
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*entities.MessageResponse, error) {
	resp, err := s.c.Post(client.WithoutAuth(ctx), "/auth/users/verify_email/", map[string]string{"token": token})
	if err != nil {
		return nil, err
	}
	return decode[entities.MessageResponse](resp)
}

// ForgotPassword requests a password reset email
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*entities.MessageResponse, error) {
	resp, err := s.c.Post(client.WithoutAuth(ctx), "/auth/users/reset_password/", map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	return decode[entities.MessageResponse](resp)
}

// ResetPassword sets a new password using a reset token
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*entities.MessageResponse, error) {
	resp, err := s.c.Post(client.WithoutAuth(ctx), "/auth/users/reset_password_confirm/", map[string]string{
		"token":            token,
		"password":         password,
		"password_confirm": confirm,
	})
	if err != nil {
		return nil, err
	}
	return decode[entities.MessageResponse](resp)
}

// Refresh forces a token refresh
func (s *AuthService) Refresh(ctx context.Context) (string, error) {
	return s.c.Refresh(ctx)
}
