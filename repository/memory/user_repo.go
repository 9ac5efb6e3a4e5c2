package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

// UserRepository keeps users in process memory and enforces the same
// email/subject uniqueness as the Postgres schema. Used by the memory
// database driver and by tests.
type UserRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byEmail   map[string]*domain.User
	bySubject map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byEmail:   make(map[string]*domain.User),
		bySubject: make(map[string]string),
	}
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) FindBySubject(_ context.Context, sub string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email, ok := r.bySubject[sub]
	if !ok || sub == "" {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.byEmail[email]), nil
}

func (r *UserRepository) Insert(_ context.Context, user *domain.User) (repository.InsertResult, error) {
	if user == nil || user.Email == "" {
		return 0, domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return repository.AlreadyExists, nil
	}
	if _, exists := r.bySubject[user.GoogleSub]; exists && user.GoogleSub != "" {
		return repository.AlreadyExists, nil
	}

	now := time.Now()
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	r.byEmail[user.Email] = cloneUser(user)
	if user.GoogleSub != "" {
		r.bySubject[user.GoogleSub] = user.Email
	}
	return repository.Inserted, nil
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	if user == nil || user.Email == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byEmail[user.Email]
	if !ok {
		return domain.ErrUserNotFound
	}

	lastLogin := stored.LastLogin
	if user.LastLogin != nil {
		lastLogin = user.LastLogin
	}

	updated := cloneUser(user)
	updated.ID = stored.ID
	updated.GoogleSub = stored.GoogleSub
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.LastLogin = lastLogin
	r.byEmail[user.Email] = updated

	user.ID = updated.ID
	user.GoogleSub = updated.GoogleSub
	user.CreatedAt = updated.CreatedAt
	user.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *UserRepository) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.mu.RLock()
	users := make([]domain.User, 0, len(r.byEmail))
	for _, u := range r.byEmail {
		if filter.Role != "" && string(u.Role) != filter.Role {
			continue
		}
		if filter.Search != "" && !matches(u, filter.Search) {
			continue
		}
		users = append(users, *cloneUser(u))
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return page(users, filter.Limit, filter.Offset), nil
}

// Len reports how many users are stored.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}

func matches(u *domain.User, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(u.Email), search) || strings.Contains(strings.ToLower(u.Name), search)
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Preferences != nil {
		c.Preferences = make(map[string]any, len(u.Preferences))
		for k, v := range u.Preferences {
			c.Preferences[k] = v
		}
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ repository.UserRepository = (*UserRepository)(nil)
