package auth

import (
	"context"

	"github.com/baechuer/totp-auth/internal/domain"
)

// Login checks credentials and either issues a token (2FA off) or opens a
// second-factor challenge (2FA on).
//
// The session-scoped TwoFactorVerified flag is reset on every successful
// credential check, before any challenge is issued.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.GetByEmail(sctx, email)
	cancel()
	if err != nil {
		if domain.Is(err, domain.CodeUserNotFound) {
			s.audit("login_failed", map[string]string{"email": email, "code": domain.CodeUserNotFound})
			return LoginResult{}, err
		}
		return LoginResult{}, s.fail("login", "", storeErr(err))
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.audit("login_failed", map[string]string{"user_id": u.ID, "code": domain.CodeInvalidCredentials})
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	// StateCredentialsChecked
	sctx, cancel = s.storeCtx(ctx)
	err = s.users.SetTwoFactorVerified(sctx, u.ID, false)
	cancel()
	if err != nil {
		return LoginResult{}, s.fail("login", u.ID, storeErr(err))
	}
	u.TwoFactorVerified = false

	if !u.TwoFactorEnabled {
		tok, err := s.issueToken(u.ID)
		if err != nil {
			return LoginResult{}, s.fail("login", u.ID, err)
		}
		s.audit("login_success", map[string]string{"user_id": u.ID})
		return LoginResult{State: StateAuthenticated, User: u, Token: tok}, nil
	}

	res := LoginResult{State: StateSecondFactorRequired, User: u}
	if s.rotateOnLogin || !u.HasSecret() {
		qr, err := s.provisionSecret(ctx, "login", u)
		if err != nil {
			return LoginResult{}, err
		}
		res.QRCode = qr
	}

	s.audit("2fa_challenge_issued", map[string]string{"user_id": u.ID})
	return res, nil
}
