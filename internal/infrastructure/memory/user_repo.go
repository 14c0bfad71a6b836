// Package memory holds in-process stand-ins for the signup ports, used when
// USER_STORE=memory and by tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/meeting-machine/internal/domain"
)

// UserRepo keeps users keyed by their exact email. Contents vanish with the
// process.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]domain.User
	now   func() time.Time
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: map[string]domain.User{}, now: time.Now}
}

func (r *UserRepo) lookup(email string) (domain.User, bool) {
	r.mu.RLock()
	u, ok := r.users[email]
	r.mu.RUnlock()
	return u, ok
}

func (r *UserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := r.lookup(email)
	return ok, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	if u, ok := r.lookup(email); ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

// Create fails with user_already_exists when email is taken, mirroring the
// unique index of the Postgres store.
func (r *UserRepo) Create(_ context.Context, nu domain.NewUser) (domain.User, error) {
	if nu.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.users[nu.Email]; taken {
		return domain.User{}, domain.ErrUserAlreadyExists()
	}

	at := r.now().UTC()
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	r.users[nu.Email] = u
	return u, nil
}

// Count reports how many users are stored.
func (r *UserRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
