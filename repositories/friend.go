package repositories

import (
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type FriendRepository struct {
	db    *badger.DB
	users *UserRepository
}

func NewFriendRepository(db *badger.DB, users *UserRepository) *FriendRepository {
	return &FriendRepository{db: db, users: users}
}

// AddFriend records the relation in both directions so either side sees the
// other in their friend list.
func (f *FriendRepository) AddFriend(userID, friendID domain.UserID) error {
	if _, err := f.users.GetUser(friendID); err != nil {
		return err
	}
	return f.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(friendKey(userID, friendID), nil); err != nil {
			return err
		}
		return txn.Set(friendKey(friendID, userID), nil)
	})
}

// Friends resolves the friend list of a user, including each friend's
// current presence state.
func (f *FriendRepository) Friends(userID domain.UserID) ([]domain.User, error) {
	var ids []domain.UserID
	prefix := []byte(fmt.Sprintf("friend:%019d:", userID))

	err := f.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := lastKeySegment(it.Item().Key())
			if err != nil {
				return err
			}
			ids = append(ids, domain.UserID(raw))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	friends := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := f.users.GetUser(id)
		if stderrors.Is(err, errors.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		friends = append(friends, user)
	}
	return friends, nil
}
