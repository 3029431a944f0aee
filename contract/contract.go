//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"chat-relay/domain"
)

// Sender is the outbound half of a client connection. Implementations must
// be usable as map keys so the registry can keep a reverse index.
type Sender interface {
	Send(payload []byte) error
}

type IRegistry interface {
	Add(id domain.UserID, conn Sender) bool
	Remove(id domain.UserID)
	Lookup(id domain.UserID) (Sender, bool)
	RemoveByConnection(conn Sender) (domain.UserID, bool)
	Len() int
}

type IUserRepository interface {
	InsertUser(user domain.User) (domain.UserID, error)
	GetUser(id domain.UserID) (domain.User, error)
	UpdateUserState(id domain.UserID, state domain.State) error
	ResetAllStates() error
}

type IGroupRepository interface {
	InsertGroup(group domain.Group) (domain.GroupID, error)
	AddMembership(userID domain.UserID, groupID domain.GroupID, role domain.Role) error
	GroupMembers(groupID domain.GroupID, excluding domain.UserID) ([]domain.UserID, error)
	UserGroups(userID domain.UserID) ([]domain.Group, error)
}

type IFriendRepository interface {
	AddFriend(userID, friendID domain.UserID) error
	Friends(userID domain.UserID) ([]domain.User, error)
}

type IOfflineQueue interface {
	EnqueueOffline(userID domain.UserID, payload []byte) error
	DequeueAllOffline(userID domain.UserID) ([][]byte, error)
}

// IBus is the cross-instance publish/subscribe channel keyed by user id.
// A user is subscribed on an instance exactly while that instance holds
// their session.
type IBus interface {
	Subscribe(ctx context.Context, id domain.UserID) error
	Unsubscribe(ctx context.Context, id domain.UserID) error
	Publish(ctx context.Context, id domain.UserID, payload []byte) error
}

// DeliveryOutcome reports which tier of the routing policy applied.
type DeliveryOutcome int

const (
	DeliveredLocal DeliveryOutcome = iota
	DeliveredRemote
	Queued
)

func (o DeliveryOutcome) String() string {
	switch o {
	case DeliveredLocal:
		return "local"
	case DeliveredRemote:
		return "remote"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

type IRouter interface {
	Route(ctx context.Context, target domain.UserID, payload []byte) (DeliveryOutcome, error)
}
