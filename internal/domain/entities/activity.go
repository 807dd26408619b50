package entities

import "time"

// Activity is an entry of the audit trail shown on the dashboard
type Activity struct {
	ID         int64     `json:"id"`
	User       User      `json:"user"`
	Group      *Group    `json:"group,omitempty"`
	Action     string    `json:"action"`
	ActionType string    `json:"action_type,omitempty"`
	RefTable   string    `json:"ref_table,omitempty"`
	RefObj     string    `json:"ref_obj,omitempty"`
	RefID      ID        `json:"ref_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Page is a DRF paginated list response
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
