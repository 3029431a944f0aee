package services

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
)

type GroupService struct {
	groups contract.IGroupRepository
	router contract.IRouter
	log    *slog.Logger
}

func NewGroupService(groups contract.IGroupRepository, router contract.IRouter, log *slog.Logger) *GroupService {
	return &GroupService{groups: groups, router: router, log: log}
}

// CreateGroup persists the group, then the creator's membership. If the
// group insert fails no membership row is written.
func (s *GroupService) CreateGroup(creator domain.UserID, name, desc string) (domain.GroupID, error) {
	groupID, err := s.groups.InsertGroup(domain.Group{Name: name, Desc: desc})
	if err != nil {
		return 0, err
	}
	if err := s.groups.AddMembership(creator, groupID, domain.RoleCreator); err != nil {
		return 0, err
	}
	s.log.Info("group created", "group", groupID, "creator", creator)
	return groupID, nil
}

// JoinGroup adds a plain membership. Duplicate joins are the store's
// business; no pre-check here.
func (s *GroupService) JoinGroup(userID domain.UserID, groupID domain.GroupID) error {
	return s.groups.AddMembership(userID, groupID, domain.RoleMember)
}

// Fanout applies the single-recipient delivery policy to every member of
// the group except the sender. Members are independent: one failed delivery
// is logged and the loop moves on.
func (s *GroupService) Fanout(ctx context.Context, sender domain.UserID, groupID domain.GroupID, payload []byte) error {
	members, err := s.groups.GroupMembers(groupID, sender)
	if err != nil {
		return err
	}
	for _, member := range members {
		if _, err := s.router.Route(ctx, member, payload); err != nil {
			s.log.Warn("group fanout delivery failed", "group", groupID, "member", member, "error", err)
		}
	}
	return nil
}
