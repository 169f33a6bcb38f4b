package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/totp-auth/internal/domain"
)

const (
	defaultAccessTTL     = time.Hour
	defaultStoreTimeout  = 5 * time.Second
	defaultRenderTimeout = 2 * time.Second
)

type Service struct {
	users   UserRepo
	hasher  PasswordHasher
	signer  TokenSigner
	secrets SecretManager
	codes   CodeVerifier
	qr      QRRenderer
	pub     EventPublisher

	accessTTL     time.Duration
	storeTimeout  time.Duration
	renderTimeout time.Duration

	rotateOnLogin    bool
	replayProtection bool

	audit func(action string, fields map[string]string)
	log   zerolog.Logger
	now   func() time.Time
}

type Config struct {
	AccessTTL     time.Duration
	StoreTimeout  time.Duration
	RenderTimeout time.Duration

	// RotateSecretOnLogin replaces the TOTP secret on every login of a
	// 2FA-enabled user and returns a fresh QR code.
	RotateSecretOnLogin bool
	// ReplayProtection rejects a code whose time step is not newer than the
	// last accepted one.
	ReplayProtection bool
}

func NewService(
	users UserRepo,
	hasher PasswordHasher,
	signer TokenSigner,
	secrets SecretManager,
	codes CodeVerifier,
	qr QRRenderer,
	pub EventPublisher,
	cfg Config,
) *Service {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	renderTimeout := cfg.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = defaultRenderTimeout
	}
	return &Service{
		users:   users,
		hasher:  hasher,
		signer:  signer,
		secrets: secrets,
		codes:   codes,
		qr:      qr,
		pub:     pub,

		accessTTL:     accessTTL,
		storeTimeout:  storeTimeout,
		renderTimeout: renderTimeout,

		rotateOnLogin:    cfg.RotateSecretOnLogin,
		replayProtection: cfg.ReplayProtection,

		audit: func(string, map[string]string) {},
		log:   zerolog.Nop(),
		now:   time.Now,
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.log = l
	return s
}

// WithClock overrides the time source used for TOTP verification.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

/*
Results
-------
One explicit result type per operation. Failures are always *domain.Error.
*/

// LoginState is the position of a login attempt in the auth state machine.
type LoginState string

const (
	StateAnonymous            LoginState = "anonymous"
	StateCredentialsChecked   LoginState = "credentials_checked"
	StateSecondFactorRequired LoginState = "second_factor_required"
	StateSecondFactorVerified LoginState = "second_factor_verified"
	StateAuthenticated        LoginState = "authenticated"
)

// AccessToken is the bearer credential handed to clients.
type AccessToken struct {
	Token     string
	TokenType string // "Bearer"
	ExpiresIn int64  // seconds
}

type RegisterResult struct {
	User domain.User
}

type LoginResult struct {
	State LoginState
	User  domain.User
	// Token is set only when State == StateAuthenticated.
	Token AccessToken
	// QRCode is a data URL, set when a new secret was provisioned.
	QRCode string
}

func (r LoginResult) Requires2FA() bool { return r.State == StateSecondFactorRequired }

type VerifyResult struct {
	Verified bool
	State    LoginState
	Token    AccessToken
}

type SetupResult struct {
	QRCode string
}

// Profile holds the non-secret user fields.
type Profile struct {
	Email            string
	TwoFactorEnabled bool
}

/*
helpers
*/

func (s *Service) issueToken(userID string) (AccessToken, error) {
	tok, err := s.signer.SignAccessToken(userID, s.accessTTL)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return AccessToken{}, de
		}
		return AccessToken{}, domain.ErrTokenSignFailed(err)
	}
	return AccessToken{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: int64(s.accessTTL.Seconds()),
	}, nil
}

// storeCtx bounds one store round-trip.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeErr keeps domain errors as they are and turns anything else coming out
// of the store (driver errors, deadlines) into StoreUnavailable.
func storeErr(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.ErrStoreUnavailable(err)
}

// fail logs an unexpected store/crypto failure with the operation and user
// and returns it unchanged. Expected outcomes (not found, bad password) are
// not logged here.
func (s *Service) fail(op, userID string, err error) error {
	s.log.Error().
		Err(err).
		Str("op", op).
		Str("user_id", userID).
		Str("code", domainCode(err)).
		Msg("auth operation failed")
	return err
}

// domainCode labels err for logs and audit entries.
func domainCode(err error) string {
	if err == nil {
		return ""
	}
	if code := domain.CodeOf(err); code != "" {
		return code
	}
	return "non_domain_error"
}

// provisionSecret generates a fresh secret, persists it and renders its QR
// code. Persisting happens first: a render failure leaves the new secret in
// effect and surfaces as RenderFailure.
func (s *Service) provisionSecret(ctx context.Context, op string, u domain.User) (string, error) {
	sec, err := s.secrets.Generate(u.Email)
	if err != nil {
		return "", s.fail(op, u.ID, domain.ErrSecretFailed(err))
	}

	sctx, cancel := s.storeCtx(ctx)
	err = s.users.SetTwoFactorSecret(sctx, u.ID, sec.Secret, true)
	cancel()
	if err != nil {
		return "", s.fail(op, u.ID, storeErr(err))
	}

	qr, err := s.renderQR(ctx, sec.URI)
	if err != nil {
		return "", s.fail(op, u.ID, err)
	}
	return qr, nil
}

func (s *Service) renderQR(ctx context.Context, uri string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	defer cancel()

	png, err := s.qr.Render(rctx, uri)
	if err != nil {
		if domain.Is(err, domain.CodeRenderFailed) {
			return "", err
		}
		return "", domain.ErrRenderFailed(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (s *Service) publish(ctx context.Context, typ string, u domain.User) {
	if s.pub == nil {
		return
	}
	evt := SecurityEvent{Type: typ, UserID: u.ID, Email: u.Email, At: s.now().UTC()}
	if err := s.pub.PublishSecurityEvent(ctx, evt); err != nil {
		s.log.Warn().
			Err(err).
			Str("event", typ).
			Str("user_id", u.ID).
			Msg("security event publish failed")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
