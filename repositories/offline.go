package repositories

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
)

// OfflineQueue is the durable per-user FIFO of messages awaiting the next
// login. The key is "offline:{target}:{timestamp_padded}:{seq_padded}:{uuid}":
//  1. The padded nanosecond timestamp makes prefix iteration return entries
//     in arrival order.
//  2. The sequence keeps arrival order for entries queued within the same
//     nanosecond; the uuid keeps keys unique across process restarts.
type OfflineQueue struct {
	db  *badger.DB
	log *slog.Logger
	seq atomic.Uint64
}

func NewOfflineQueue(db *badger.DB, log *slog.Logger) *OfflineQueue {
	return &OfflineQueue{db: db, log: log}
}

func offlinePrefix(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("offline:%019d:", userID))
}

func (q *OfflineQueue) EnqueueOffline(userID domain.UserID, payload []byte) error {
	key := fmt.Sprintf("offline:%019d:%019d:%019d:%s",
		userID,
		time.Now().UnixNano(),
		q.seq.Add(1),
		uuid.New(),
	)
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
}

// DequeueAllOffline returns every queued entry for a user in FIFO order and
// clears the queue. Collect and delete happen inside one transaction, so a
// failure leaves the queue intact and a success cannot hand out an entry
// twice.
func (q *OfflineQueue) DequeueAllOffline(userID domain.UserID) ([][]byte, error) {
	var payloads [][]byte
	prefix := offlinePrefix(userID)

	err := q.db.Update(func(txn *badger.Txn) error {
		payloads = payloads[:0]
		var keys [][]byte

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			payloads = append(payloads, val)
			keys = append(keys, item.KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(payloads) > 0 {
		q.log.Debug("drained offline queue", "user", userID, "entries", len(payloads))
	}
	return payloads, nil
}
