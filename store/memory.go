package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/princinho/authgate/models"
)

// MemoryStore keeps identities in process memory. Used for tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.User
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]models.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(ctx, "create user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, DuplicateError{Field: "email"}
		}
		if existing.Username == u.Username {
			return nil, DuplicateError{Field: "username"}
		}
	}

	created := *u
	created.ID = NewID()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now()
	}
	s.users[created.ID] = created
	return &created, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(ctx, "find user", err)
	}
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findBy(ctx, func(u models.User) bool { return u.Email == email })
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findBy(ctx, func(u models.User) bool { return u.Username == username })
}

func (s *MemoryStore) findBy(ctx context.Context, match func(models.User) bool) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(ctx, "find user", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(ctx, "list users", err)
	}

	s.mu.RLock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	// ULIDs sort by creation time, so they break CreatedAt ties deterministically.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ToggleAdmin(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(ctx, "toggle admin", err)
	}
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.IsAdmin = !u.IsAdmin
	s.users[id] = u
	return &u, nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	if err := ctx.Err(); err != nil {
		return wrapContextErr(ctx, "update password", err)
	}
	id, err := ParseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}
