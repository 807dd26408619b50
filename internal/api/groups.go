package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

// GroupService manages expense groups and their members
type GroupService struct {
	c *client.Client
}

func groupPath(id entities.ID, rest ...string) string {
	p := "/groups/" + url.PathEscape(id.String()) + "/"
	for _, r := range rest {
		p += url.PathEscape(r) + "/"
	}
	return p
}

// List returns the groups the user belongs to
func (s *GroupService) List(ctx context.Context) ([]entities.Group, error) {
	resp, err := s.c.Get(ctx, "/groups/")
	if err != nil {
		return nil, err
	}
	return decodeList[entities.Group](resp)
}

// Get returns one group with balances and recent expenses
func (s *GroupService) Get(ctx context.Context, id entities.ID) (*entities.GroupDetail, error) {
	resp, err := s.c.Get(ctx, groupPath(id))
	if err != nil {
		return nil, err
	}
	return decode[entities.GroupDetail](resp)
}

// Create creates a group with the caller as admin
func (s *GroupService) Create(ctx context.Context, data entities.CreateGroupData) (*entities.Group, error) {
	if data.Name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	resp, err := s.c.Post(ctx, "/groups/", data)
	if err != nil {
		return nil, err
	}
	return decode[entities.Group](resp)
}

// Invite emails an invitation to join the group
func (s *GroupService) Invite(ctx context.Context, id entities.ID, email, message string) (*entities.GroupInvite, error) {
	body := map[string]string{"email": email}
	if message != "" {
		body["message"] = message
	}
	resp, err := s.c.Post(ctx, groupPath(id, "invite"), body)
	if err != nil {
		return nil, err
	}
	return decode[entities.GroupInvite](resp)
}

// Invites lists the group's invitations (admins only)
func (s *GroupService) Invites(ctx context.Context, id entities.ID) ([]entities.GroupInvite, error) {
	resp, err := s.c.Get(ctx, groupPath(id, "invites"))
	if err != nil {
		return nil, err
	}
	return decodeList[entities.GroupInvite](resp)
}

// Members lists the group's members
func (s *GroupService) Members(ctx context.Context, id entities.ID) ([]entities.GroupMember, error) {
	resp, err := s.c.Get(ctx, groupPath(id, "members"))
	if err != nil {
		return nil, err
	}
	var body struct {
		Members []entities.GroupMember `json:"members"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return body.Members, nil
}

// RemoveMember removes a member from the group
func (s *GroupService) RemoveMember(ctx context.Context, id entities.ID, memberID int64) error {
	_, err := s.c.Delete(ctx, groupPath(id, "members", fmt.Sprint(memberID)))
	return err
}
