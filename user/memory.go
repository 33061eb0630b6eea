package user

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/sessionauth"
)

// MemoryStore keeps users in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]sessionauth.User
	byUsername map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]sessionauth.User),
		byUsername: make(map[string]string),
	}
}

func (s *MemoryStore) ReadByID(_ context.Context, id string) (*sessionauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, sessionauth.ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) ReadByUsername(_ context.Context, username string) (*sessionauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, sessionauth.ErrUserNotFound
	}
	u := s.byID[id]
	return &u, nil
}

func (s *MemoryStore) Create(_ context.Context, u *sessionauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[u.Username]; ok {
		return sessionauth.ErrUsernameTaken
	}
	if _, ok := s.byID[u.ID]; ok {
		return sessionauth.ErrUsernameTaken
	}
	s.byID[u.ID] = *u
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, u *sessionauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[u.ID]
	if !ok {
		return sessionauth.ErrUserNotFound
	}
	if old.Username != u.Username {
		if _, taken := s.byUsername[u.Username]; taken {
			return sessionauth.ErrUsernameTaken
		}
		delete(s.byUsername, old.Username)
		s.byUsername[u.Username] = u.ID
	}
	s.byID[u.ID] = *u
	return nil
}

func (s *MemoryStore) List(_ context.Context, q sessionauth.ListUsersQuery) ([]sessionauth.User, error) {
	s.mu.RLock()
	users := make([]sessionauth.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, u)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if q.Descending {
			return users[i].Username > users[j].Username
		}
		return users[i].Username < users[j].Username
	})

	if q.Offset >= len(users) {
		return []sessionauth.User{}, nil
	}
	users = users[q.Offset:]
	if q.Limit > 0 && q.Limit < len(users) {
		users = users[:q.Limit]
	}
	return users, nil
}
