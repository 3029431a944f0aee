package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewUserRepository acquires the user id sequence. Release the repository
// with Close so unused ids in the current lease are returned.
func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 64)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

// diskUser is the stored representation of a user.
type diskUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	State    string `json:"state"`
}

// InsertUser assigns the next user id and persists the user. The caller's
// State field is ignored; a new user always starts offline.
func (u *UserRepository) InsertUser(user domain.User) (domain.UserID, error) {
	next, err := u.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next user id: %w", err)
	}
	id := domain.UserID(next + 1)

	data, err := json.Marshal(diskUser{
		ID:       int64(id),
		Name:     user.Name,
		Password: user.Password,
		State:    string(domain.Offline),
	})
	if err != nil {
		return 0, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (u *UserRepository) GetUser(id domain.UserID) (domain.User, error) {
	var disk diskUser

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(disk), nil
}

func (u *UserRepository) UpdateUserState(id domain.UserID, state domain.State) error {
	return u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		var disk diskUser
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}
		disk.State = string(state)
		data, err := json.Marshal(disk)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
}

// ResetAllStates marks every user offline. Run once at startup: a fresh
// process holds no sessions, so any user still online in the store is stale
// state left by a prior crash.
func (u *UserRepository) ResetAllStates() error {
	prefix := []byte("user:")
	return u.db.Update(func(txn *badger.Txn) error {
		// Collect first: badger forbids writes while a txn iterator is open.
		type pending struct {
			key  []byte
			data []byte
		}
		var updates []pending

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var disk diskUser
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			}); err != nil {
				it.Close()
				return err
			}
			if disk.State != string(domain.Online) {
				continue
			}
			disk.State = string(domain.Offline)
			data, err := json.Marshal(disk)
			if err != nil {
				it.Close()
				return err
			}
			updates = append(updates, pending{key: item.KeyCopy(nil), data: data})
		}
		it.Close()

		for _, upd := range updates {
			if err := txn.Set(upd.key, upd.data); err != nil {
				return err
			}
		}
		return nil
	})
}

func toUser(disk diskUser) domain.User {
	return domain.User{
		ID:       domain.UserID(disk.ID),
		Name:     disk.Name,
		Password: disk.Password,
		State:    domain.State(disk.State),
	}
}
