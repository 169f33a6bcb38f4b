package auth

import (
	"context"

	"github.com/baechuer/totp-auth/internal/domain"
)

// GetProfile returns the non-secret profile of an authenticated user.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByID(sctx, userID)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			return Profile{}, err
		}
		return Profile{}, s.fail("get_profile", userID, storeErr(err))
	}
	return Profile{Email: u.Email, TwoFactorEnabled: u.TwoFactorEnabled}, nil
}

// Authorize is the store half of the Access Gate: the bearer token has
// already been verified for userID. It blocks users with 2FA enabled until
// they complete the second factor of their current login.
func (s *Service) Authorize(ctx context.Context, userID string) (domain.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByID(sctx, userID)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			// a valid signature for a subject that no longer exists
			return domain.User{}, domain.ErrTokenInvalid()
		}
		return domain.User{}, s.fail("authorize", userID, storeErr(err))
	}
	if u.NeedsSecondFactor() {
		return domain.User{}, domain.ErrSecondFactorRequired()
	}
	return u, nil
}
