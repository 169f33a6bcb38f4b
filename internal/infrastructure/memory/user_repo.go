package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/totp-auth/internal/domain"
)

// UserRepo is a process-local credential store. All mutations take the write
// lock so each one is atomic with respect to concurrent requests.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string // email -> userID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return domain.User{}, domain.ErrDuplicateUser()
	}
	if u.ID == "" {
		return domain.User{}, domain.ErrInternal(nil)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *UserRepo) SetTwoFactorVerified(ctx context.Context, userID string, verified bool) error {
	return r.mutate(ctx, userID, func(u *domain.User) {
		u.TwoFactorVerified = verified
	})
}

func (r *UserRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string, enabled bool) error {
	return r.mutate(ctx, userID, func(u *domain.User) {
		u.TwoFactorSecret = secret
		u.TwoFactorEnabled = enabled
		u.TwoFactorLastStep = 0
	})
}

func (r *UserRepo) ClearTwoFactor(ctx context.Context, userID string) error {
	return r.mutate(ctx, userID, func(u *domain.User) {
		u.TwoFactorSecret = ""
		u.TwoFactorEnabled = false
		u.TwoFactorVerified = false
		u.TwoFactorLastStep = 0
	})
}

func (r *UserRepo) AdvanceTwoFactorStep(ctx context.Context, userID string, step int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.ErrStoreUnavailable(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return false, domain.ErrUserNotFound()
	}
	if step <= u.TwoFactorLastStep {
		return false, nil
	}
	u.TwoFactorLastStep = step
	r.byID[userID] = u
	return true, nil
}

func (r *UserRepo) mutate(ctx context.Context, userID string, fn func(*domain.User)) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	fn(&u)
	r.byID[userID] = u
	return nil
}

// Ping satisfies the readiness probe.
func (r *UserRepo) Ping(ctx context.Context) error { return ctx.Err() }
