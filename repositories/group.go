package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type GroupRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewGroupRepository(db *badger.DB) (*GroupRepository, error) {
	seq, err := db.GetSequence([]byte("seq:group"), 64)
	if err != nil {
		return nil, fmt.Errorf("group id sequence: %w", err)
	}
	return &GroupRepository{db: db, seq: seq}, nil
}

func (g *GroupRepository) Close() error {
	return g.seq.Release()
}

type diskGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Desc string `json:"desc"`
}

func (g *GroupRepository) InsertGroup(group domain.Group) (domain.GroupID, error) {
	next, err := g.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next group id: %w", err)
	}
	id := domain.GroupID(next + 1)

	data, err := json.Marshal(diskGroup{ID: int64(id), Name: group.Name, Desc: group.Desc})
	if err != nil {
		return 0, err
	}

	err = g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupKey(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddMembership writes the membership row and its reverse index. Writing an
// existing membership overwrites the role, which makes the operation
// idempotent for repeated joins.
func (g *GroupRepository) AddMembership(userID domain.UserID, groupID domain.GroupID, role domain.Role) error {
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(groupKey(groupID)); stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrGroupNotFound
		} else if err != nil {
			return err
		}
		if err := txn.Set(membershipKey(groupID, userID), []byte(role)); err != nil {
			return err
		}
		return txn.Set(userGroupKey(userID, groupID), nil)
	})
}

// GroupMembers lists the member ids of a group, excluding one user. The
// exclusion is how fanout skips the sender without a second pass.
func (g *GroupRepository) GroupMembers(groupID domain.GroupID, excluding domain.UserID) ([]domain.UserID, error) {
	var members []domain.UserID
	prefix := []byte(fmt.Sprintf("groupmember:%019d:", groupID))

	err := g.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := lastKeySegment(it.Item().Key())
			if err != nil {
				return err
			}
			if id := domain.UserID(raw); id != excluding {
				members = append(members, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (g *GroupRepository) UserGroups(userID domain.UserID) ([]domain.Group, error) {
	var ids []domain.GroupID
	prefix := []byte(fmt.Sprintf("usergroup:%019d:", userID))

	err := g.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := lastKeySegment(it.Item().Key())
			if err != nil {
				return err
			}
			ids = append(ids, domain.GroupID(raw))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		var disk diskGroup
		err := g.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(groupKey(id))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
		})
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, domain.Group{ID: domain.GroupID(disk.ID), Name: disk.Name, Desc: disk.Desc})
	}
	return groups, nil
}
