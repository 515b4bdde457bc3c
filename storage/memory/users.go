package memory

import (
	"context"
	"sync"

	"github.com/phonetica/phonauth"
)

// Users is an in-memory phonauth.UserRepository keyed by email.
type Users struct {
	mu      sync.RWMutex
	nextID  int64
	byEmail map[string]phonauth.User
}

func NewUsers() *Users {
	return &Users{byEmail: make(map[string]phonauth.User)}
}

func (u *Users) FindByEmail(_ context.Context, email string) (phonauth.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byEmail[email]
	if !ok {
		return phonauth.User{}, phonauth.ErrUserNotFound
	}
	return user, nil
}

func (u *Users) Create(_ context.Context, user phonauth.User) (phonauth.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byEmail[user.Email]; ok {
		return phonauth.User{}, phonauth.ErrEmailTaken
	}
	u.nextID++
	user.ID = u.nextID
	u.byEmail[user.Email] = user
	return user, nil
}

// Save overwrites the stored user with the same email. Email and ID are
// immutable.
func (u *Users) Save(_ context.Context, user phonauth.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, ok := u.byEmail[user.Email]
	if !ok || cur.ID != user.ID {
		return phonauth.ErrUserNotFound
	}
	user.CreatedAt = cur.CreatedAt
	u.byEmail[user.Email] = user
	return nil
}

// Len returns the number of users.
func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.byEmail)
}
