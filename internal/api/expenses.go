package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

// ExpenseService manages expenses
type ExpenseService struct {
	c *client.Client
}

func expensePath(id entities.ID) string {
	return "/expenses/" + url.PathEscape(id.String()) + "/"
}

// ListOptions filters expense listings
type ListOptions struct {
	Group entities.ID
	Page  int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Group != "" {
		q.Set("group", o.Group.String())
	}
	if o.Page > 0 {
		q.Set("page", fmt.Sprint(o.Page))
	}
	return q
}

// List returns expenses visible to the user
func (s *ExpenseService) List(ctx context.Context, opts ListOptions) ([]entities.Expense, error) {
	resp, err := s.c.Get(ctx, "/expenses/", client.WithQuery(opts.query()))
	if err != nil {
		return nil, err
	}
	return decodeList[entities.Expense](resp)
}

// Get returns one expense with its participants
func (s *ExpenseService) Get(ctx context.Context, id entities.ID) (*entities.ExpenseDetail, error) {
	resp, err := s.c.Get(ctx, expensePath(id))
	if err != nil {
		return nil, err
	}
	return decode[entities.ExpenseDetail](resp)
}

// Create records a new expense
func (s *ExpenseService) Create(ctx context.Context, data entities.CreateExpenseData) (*entities.ExpenseDetail, error) {
	if data.SplitType == "" {
		data.SplitType = entities.SplitEqual
	}
	if !data.SplitType.Valid() {
		return nil, fmt.Errorf("unknown split type %q", data.SplitType)
	}
	resp, err := s.c.Post(ctx, "/expenses/", data)
	if err != nil {
		return nil, err
	}
	return decode[entities.ExpenseDetail](resp)
}

// Update applies a partial update
func (s *ExpenseService) Update(ctx context.Context, id entities.ID, data entities.UpdateExpenseData) (*entities.ExpenseDetail, error) {
	resp, err := s.c.Patch(ctx, expensePath(id), data)
	if err != nil {
		return nil, err
	}
	return decode[entities.ExpenseDetail](resp)
}

// Delete removes an expense
func (s *ExpenseService) Delete(ctx context.Context, id entities.ID) error {
	_, err := s.c.Delete(ctx, expensePath(id))
	return err
}
