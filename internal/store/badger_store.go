// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists users and file records in an embedded badger database.
// Keys:
//   - users: "user:<id>" (JSON)
//   - files: "file:<owner>:<file_unique_id>" (JSON)
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func userKey(id int64) []byte {
	return []byte("user:" + strconv.FormatInt(id, 10))
}

func fileKey(owner int64, uid string) []byte {
	return []byte("file:" + strconv.FormatInt(owner, 10) + ":" + uid)
}

func filePrefix(owner int64) []byte {
	return []byte("file:" + strconv.FormatInt(owner, 10) + ":")
}

func (s *BadgerStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var out User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) PutUser(ctx context.Context, u *User) error {
	buf, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(u.UserID), buf)
	})
}

func (s *BadgerStore) UpdateUser(ctx context.Context, id int64, fn func(*User) error) (*User, error) {
	var out *User
	err := s.db.Update(func(txn *badger.Txn) error {
		u := NewUser(id)
		item, err := txn.Get(userKey(id))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, u)
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// keep defaults
		default:
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		buf, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if err := txn.Set(userKey(id), buf); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) PutFile(ctx context.Context, rec *FileRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fileKey(rec.OwnerID, rec.FileUniqueID), buf)
	})
}

func (s *BadgerStore) GetFile(ctx context.Context, ownerID int64, fileUniqueID string) (*FileRecord, error) {
	var out FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(ownerID, fileUniqueID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) FindOwnerByIndexChannel(ctx context.Context, channelID int64) (int64, error) {
	var owner int64
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("user:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var u User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			}); err != nil {
				return err
			}
			if u.IndexDBChannel == channelID {
				owner = u.UserID
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	return owner, nil
}

func (s *BadgerStore) FileCount(ctx context.Context, ownerID int64) (int, error) {
	return s.countPrefix(filePrefix(ownerID))
}

func (s *BadgerStore) TotalFiles(ctx context.Context) (int, error) {
	return s.countPrefix([]byte("file:"))
}

func (s *BadgerStore) countPrefix(prefix []byte) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
