package entities

import (
	"encoding/json"
	"time"
)

// SplitType says how an expense is divided between participants
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitUnequal    SplitType = "unequal"
	SplitPercentage SplitType = "percentage"
	SplitShares     SplitType = "shares"
)

// Valid reports whether s is a split type the backend accepts
func (s SplitType) Valid() bool {
	switch s {
	case SplitEqual, SplitUnequal, SplitPercentage, SplitShares:
		return true
	}
	return false
}

// Category tags expenses
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpenseParticipant is one person's share of an expense
type ExpenseParticipant struct {
	UserID     int64       `json:"user_id"`
	UserName   string      `json:"user_name"`
	UserEmail  string      `json:"user_email"`
	Amount     json.Number `json:"amount"`
	Percentage json.Number `json:"percentage,omitempty"`
	Shares     json.Number `json:"shares,omitempty"`
}

// Expense is the list view of an expense
type Expense struct {
	ID               ID          `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Amount           json.Number `json:"amount"`
	SplitType        SplitType   `json:"split_type"`
	Date             string      `json:"date"`
	CreatedByName    string      `json:"created_by_name"`
	PaidByName       string      `json:"paid_by_name"`
	GroupName        string      `json:"group_name"`
	Category         *Category   `json:"category_detail,omitempty"`
	ParticipantCount int         `json:"participant_count"`
	CreatedAt        time.Time   `json:"created_at"`
}

// ExpenseDetail is the full view of a single expense
type ExpenseDetail struct {
	ID            ID                   `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	Amount        json.Number          `json:"amount"`
	SplitType     SplitType            `json:"split_type"`
	Date          string               `json:"date"`
	CreatedByName string               `json:"created_by_name"`
	PaidByName    string               `json:"paid_by_name"`
	GroupName     string               `json:"group_name"`
	Category      *Category            `json:"category_detail,omitempty"`
	Participants  []ExpenseParticipant `json:"participants"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// ParticipantShare is one entry of CreateExpenseData.Participants.
// Which of Amount, Percentage and Shares is set depends on the split type.
type ParticipantShare struct {
	UserID     int64       `json:"user_id"`
	Amount     json.Number `json:"amount,omitempty"`
	Percentage json.Number `json:"percentage,omitempty"`
	Shares     json.Number `json:"shares,omitempty"`
}

// CreateExpenseData is the payload for creating an expense
type CreateExpenseData struct {
	Group        ID                 `json:"group"`
	PaidBy       int64              `json:"paid_by"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Amount       json.Number        `json:"amount"`
	SplitType    SplitType          `json:"split_type"`
	Category     *int64             `json:"category"`
	Date         string             `json:"date"`
	Participants []ParticipantShare `json:"participants"`
}

// UpdateExpenseData is a partial update; nil fields are left unchanged
type UpdateExpenseData struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Amount      *json.Number `json:"amount,omitempty"`
	SplitType   *SplitType   `json:"split_type,omitempty"`
	Category    *int64       `json:"category,omitempty"`
	Date        *string      `json:"date,omitempty"`
}
