// Package notify persists direct notifications for recipients with no live
// connection so they can be replayed on the next connect.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/taskstream/backend/domain"
)

// Inbox wraps BoltDB to park undelivered notifications per recipient.
type Inbox struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Inbox, error) {
	if bucket == "" {
		bucket = "notifications"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Inbox{
		db:     db,
		bucket: []byte(bucket),
	}, nil
}

// Append parks a notification. Keys are ordered by recipient and creation
// time so replay preserves arrival order.
func (i *Inbox) Append(n domain.Notification) error {
	if i == nil || i.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := buildKey(n)
	return i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(i.bucket).Put(key, payload)
	})
}

// PendingFor returns all parked notifications for the recipient, oldest
// first, without removing them.
func (i *Inbox) PendingFor(userID string) ([]domain.Notification, error) {
	if i == nil || i.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}

	prefix := userPrefix(userID)
	var pending []domain.Notification
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(i.bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			pending = append(pending, n)
		}
		return nil
	})
	return pending, err
}

// Clear removes the given notification ids for the recipient.
func (i *Inbox) Clear(userID string, ids []string) error {
	if i == nil || i.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(ids) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	prefix := userPrefix(userID)
	return i.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(i.bucket)
		c := bucket.Cursor()
		var stale [][]byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			if _, ok := wanted[n.ID]; ok {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneOlderThan drops notifications created before the cutoff and returns
// how many were removed.
func (i *Inbox) PruneOlderThan(cutoff time.Time) (int, error) {
	if i == nil || i.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}

	pruned := 0
	err := i.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(i.bucket)
		c := bucket.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				stale = append(stale, append([]byte(nil), k...))
				continue
			}
			if n.CreatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}

// Size returns the number of parked notifications.
func (i *Inbox) Size() (int, error) {
	if i == nil || i.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	size := 0
	err := i.db.View(func(tx *bolt.Tx) error {
		size = tx.Bucket(i.bucket).Stats().KeyN
		return nil
	})
	return size, err
}

// Close releases the underlying database file.
func (i *Inbox) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func buildKey(n domain.Notification) []byte {
	return []byte(fmt.Sprintf("%s/%020d/%s", n.UserID, n.CreatedAt.UnixNano(), n.ID))
}

func userPrefix(userID string) []byte {
	return []byte(userID + "/")
}
