// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*User
	files map[string]*FileRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*User),
		files: make(map[string]*FileRecord),
	}
}

func (s *MemoryStore) Close() error { return nil }

func memFileKey(owner int64, uid string) string {
	return strconv.FormatInt(owner, 10) + ":" + uid
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) PutUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.UserID] = &cp
	return nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, id int64, fn func(*User) error) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := NewUser(id)
	if existing, ok := s.users[id]; ok {
		cp := *existing
		u = &cp
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	s.users[id] = u
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) PutFile(ctx context.Context, rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.files[memFileKey(rec.OwnerID, rec.FileUniqueID)] = &cp
	return nil
}

func (s *MemoryStore) GetFile(ctx context.Context, ownerID int64, fileUniqueID string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[memFileKey(ownerID, fileUniqueID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) FindOwnerByIndexChannel(ctx context.Context, channelID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if u.IndexDBChannel == channelID {
			return id, nil
		}
	}
	return 0, ErrNotFound
}

func (s *MemoryStore) TotalFiles(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files), nil
}

func (s *MemoryStore) FileCount(ctx context.Context, ownerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := strconv.FormatInt(ownerID, 10) + ":"
	count := 0
	for k := range s.files {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}
