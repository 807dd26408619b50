package entities

import (
	"encoding/json"
	"strings"
	"time"
)

// Group is a set of people sharing expenses
type Group struct {
	ID          ID            `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	Members     []GroupMember `json:"members"`
	CreatedBy   *User         `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// GroupMember is a user as seen from inside a group
type GroupMember struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Username  string      `json:"username,omitempty"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	IsAdmin   bool        `json:"is_admin"`
	Balance   json.Number `json:"balance,omitempty"`
}

// Name returns the member's full name, falling back to the email address
func (m GroupMember) Name() string {
	if full := strings.TrimSpace(m.FirstName + " " + m.LastName); full != "" {
		return full
	}
	return m.Email
}

// GroupDetail is the single-group view with balances and recent activity
type GroupDetail struct {
	ID             ID              `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	AvatarURL      string          `json:"group_avatar_url,omitempty"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"created_at"`
	Members        []GroupMember   `json:"members"`
	RecentExpenses []RecentExpense `json:"recent_expenses"`
	TotalExpenses  json.Number     `json:"total_expenses"`
	YourBalance    json.Number     `json:"your_balance"`
	IsAdmin        bool            `json:"is_admin"`
}

// RecentExpense is the condensed expense shown on a group page
type RecentExpense struct {
	ID           ID          `json:"id"`
	Description  string      `json:"description"`
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	Date         string      `json:"date"`
	CreatedBy    GroupMember `json:"created_by"`
	Participants []int64     `json:"participants"`
	Category     int64       `json:"category"`
}

// CreateGroupData is the payload for creating a group
type CreateGroupData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AvatarURL   string `json:"group_avatar_url,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// InviteStatus is the lifecycle state of a group invite
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

// GroupInvite is an emailed invitation to join a group
type GroupInvite struct {
	ID         ID           `json:"id"`
	Email      string       `json:"email"`
	Status     InviteStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	InviteLink string       `json:"invite_link"`
}
