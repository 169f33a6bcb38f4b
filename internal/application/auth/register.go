package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/totp-auth/internal/domain"
)

// Register creates a user with 2FA off. No token is issued.
func (s *Service) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return RegisterResult{}, domain.ErrInvalidField("email/password", "empty")
	}

	sctx, cancel := s.storeCtx(ctx)
	_, err := s.users.GetByEmail(sctx, email)
	cancel()
	switch {
	case err == nil:
		s.audit("register_failed", map[string]string{"email": email, "code": domain.CodeDuplicateUser})
		return RegisterResult{}, domain.ErrDuplicateUser()
	case !domain.Is(err, domain.CodeUserNotFound):
		return RegisterResult{}, s.fail("register", "", storeErr(err))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if domain.CodeOf(err) != "" {
			return RegisterResult{}, err
		}
		return RegisterResult{}, s.fail("register", "", domain.ErrHashFailed(err))
	}

	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}

	sctx, cancel = s.storeCtx(ctx)
	created, err := s.users.Create(sctx, u)
	cancel()
	if err != nil {
		// the store enforces uniqueness too (concurrent registrations)
		if domain.Is(err, domain.CodeDuplicateUser) {
			return RegisterResult{}, err
		}
		return RegisterResult{}, s.fail("register", u.ID, storeErr(err))
	}

	s.audit("registered", map[string]string{"user_id": created.ID, "email": created.Email})
	s.publish(ctx, EventUserRegistered, created)

	return RegisterResult{User: created}, nil
}
