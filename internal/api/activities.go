package api

import (
	"context"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

// CategoryService lists expense categories
type CategoryService struct {
	c *client.Client
}

// List returns all categories
func (s *CategoryService) List(ctx context.Context) ([]entities.Category, error) {
	resp, err := s.c.Get(ctx, "/categories/")
	if err != nil {
		return nil, err
	}
	return decodeList[entities.Category](resp)
}

// ActivityService reads the activity log
type ActivityService struct {
	c *client.Client
}

// List returns recent activity across the user's groups
func (s *ActivityService) List(ctx context.Context) ([]entities.Activity, error) {
	resp, err := s.c.Get(ctx, "/activities/")
	if err != nil {
		return nil, err
	}
	return decodeList[entities.Activity](resp)
}
