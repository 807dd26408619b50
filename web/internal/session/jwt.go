package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no access token is stored for the session
	ErrNoToken = errors.New("no token in session")

	// ErrInvalidToken is returned when the token cannot be parsed
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingUserID is returned when the token is missing the required user_id claim
	ErrMissingUserID = errors.New("token missing user_id claim")
)

// UserClaims is what the web tier can learn about the user from an access
// token without calling the backend
type UserClaims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Expired   bool      `json:"expired"`
}

// ParseUserClaims reads the claims of a simplejwt access token. The signature
// is not checked; the backend verifies every token it receives. An expired
// token still parses, with Expired set, since the next API call refreshes it.
func ParseUserClaims(tokenString string) (*UserClaims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	user := &UserClaims{}

	// simplejwt emits user_id as a number; other issuers use strings
	switch id := claims["user_id"].(type) {
	case float64:
		user.UserID = fmt.Sprintf("%d", int64(id))
	case string:
		user.UserID = id
	}
	if user.UserID == "" {
		return nil, ErrMissingUserID
	}

	if username, ok := claims["username"].(string); ok {
		user.Username = username
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		user.ExpiresAt = exp.Time
		user.Expired = time.Now().After(exp.Time)
	}

	return user, nil
}
