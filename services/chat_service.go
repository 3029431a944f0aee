package services

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain"
)

// ChatService covers the two chat paths and the friend operation; both chat
// paths reduce to the shared delivery policy.
type ChatService struct {
	router  contract.IRouter
	groups  *GroupService
	friends contract.IFriendRepository
}

func NewChatService(router contract.IRouter, groups *GroupService, friends contract.IFriendRepository) *ChatService {
	return &ChatService{router: router, groups: groups, friends: friends}
}

// OneChat routes a one-to-one message to its target.
func (s *ChatService) OneChat(ctx context.Context, target domain.UserID, payload []byte) (contract.DeliveryOutcome, error) {
	return s.router.Route(ctx, target, payload)
}

// GroupChat fans a message out to every other member of the group.
func (s *ChatService) GroupChat(ctx context.Context, sender domain.UserID, groupID domain.GroupID, payload []byte) error {
	return s.groups.Fanout(ctx, sender, groupID, payload)
}

func (s *ChatService) AddFriend(userID, friendID domain.UserID) error {
	return s.friends.AddFriend(userID, friendID)
}
