// Package api is the typed surface of the bill-splitter REST backend,
// built on the authenticated client.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

// API groups the per-resource services
type API struct {
	Auth       *AuthService
	Groups     *GroupService
	Expenses   *ExpenseService
	Categories *CategoryService
	Activities *ActivityService
}

// New builds every service on top of c
func New(c *client.Client, opts ...AuthOption) *API {
	return &API{
		Auth:       NewAuthService(c, opts...),
		Groups:     &GroupService{c: c},
		Expenses:   &ExpenseService{c: c},
		Categories: &CategoryService{c: c},
		Activities: &ActivityService{c: c},
	}
}

// decodeList accepts both a DRF page ({"results": [...]}) and a bare array
func decodeList[T any](resp *client.Response) ([]T, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return []T{}, nil
	}
	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	}

	var page entities.Page[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

func decode[T any](resp *client.Response) (*T, error) {
	var v T
	if err := resp.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
