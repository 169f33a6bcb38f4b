package auth

import (
	"context"
	"strings"

	"github.com/baechuer/totp-auth/internal/domain"
)

// Verify2FA completes the second factor of a login. A wrong code is a
// negative result, not an error, so callers may retry.
func (s *Service) Verify2FA(ctx context.Context, userID, code string) (VerifyResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return VerifyResult{}, domain.ErrUserNotFound()
	}

	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByID(sctx, userID)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			return VerifyResult{}, err
		}
		return VerifyResult{}, s.fail("2fa_verify", userID, storeErr(err))
	}

	rejected := VerifyResult{Verified: false, State: StateSecondFactorRequired}

	code = strings.TrimSpace(code)
	if !u.HasSecret() || code == "" {
		s.audit("2fa_failed", map[string]string{"user_id": u.ID, "reason": "no_secret_or_code"})
		return rejected, nil
	}

	step, ok := s.codes.Verify(u.TwoFactorSecret, code, s.now())
	if !ok {
		s.audit("2fa_failed", map[string]string{"user_id": u.ID, "reason": "bad_code"})
		return rejected, nil
	}

	if s.replayProtection {
		sctx, cancel = s.storeCtx(ctx)
		advanced, err := s.users.AdvanceTwoFactorStep(sctx, u.ID, step)
		cancel()
		if err != nil {
			return VerifyResult{}, s.fail("2fa_verify", u.ID, storeErr(err))
		}
		if !advanced {
			s.audit("2fa_failed", map[string]string{"user_id": u.ID, "reason": "replayed_code"})
			return rejected, nil
		}
	}

	// StateSecondFactorVerified
	sctx, cancel = s.storeCtx(ctx)
	err = s.users.SetTwoFactorVerified(sctx, u.ID, true)
	cancel()
	if err != nil {
		return VerifyResult{}, s.fail("2fa_verify", u.ID, storeErr(err))
	}

	tok, err := s.issueToken(u.ID)
	if err != nil {
		return VerifyResult{}, s.fail("2fa_verify", u.ID, err)
	}

	s.audit("2fa_verified", map[string]string{"user_id": u.ID})
	return VerifyResult{Verified: true, State: StateAuthenticated, Token: tok}, nil
}

// Setup2FA provisions a fresh secret and enables 2FA. Calling it again
// rotates the secret.
func (s *Service) Setup2FA(ctx context.Context, userID string) (SetupResult, error) {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByID(sctx, userID)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			return SetupResult{}, err
		}
		return SetupResult{}, s.fail("2fa_setup", userID, storeErr(err))
	}

	qr, err := s.provisionSecret(ctx, "2fa_setup", u)
	if err != nil {
		// the secret may already be persisted (render failure); the event
		// reflects stored state, not the response
		if domain.Is(err, domain.CodeRenderFailed) {
			s.publish(ctx, EventTwoFactorEnabled, u)
		}
		return SetupResult{}, err
	}

	s.audit("2fa_enabled", map[string]string{"user_id": u.ID})
	s.publish(ctx, EventTwoFactorEnabled, u)
	return SetupResult{QRCode: qr}, nil
}

// Disable2FA clears the secret and turns 2FA off. Idempotent.
func (s *Service) Disable2FA(ctx context.Context, userID string) error {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByID(sctx, userID)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			return err
		}
		return s.fail("2fa_disable", userID, storeErr(err))
	}

	sctx, cancel = s.storeCtx(ctx)
	err = s.users.ClearTwoFactor(sctx, u.ID)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			return err
		}
		return s.fail("2fa_disable", u.ID, storeErr(err))
	}

	s.audit("2fa_disabled", map[string]string{"user_id": u.ID})
	if u.TwoFactorEnabled {
		s.publish(ctx, EventTwoFactorDisabled, u)
	}
	return nil
}
