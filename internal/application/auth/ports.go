package auth

import (
	"context"
	"time"

	"github.com/baechuer/totp-auth/internal/domain"
)

/*
UserRepo
--------
Persistence port for users (the Credential Store).
Every mutation is a single atomic write against one record; callers never
read-modify-write a whole user.
*/
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)

	SetTwoFactorVerified(ctx context.Context, userID string, verified bool) error
	// SetTwoFactorSecret replaces the secret, sets the enabled flag and
	// resets the replay high-water mark.
	SetTwoFactorSecret(ctx context.Context, userID, secret string, enabled bool) error
	// ClearTwoFactor removes the secret and disables 2FA.
	ClearTwoFactor(ctx context.Context, userID string) error
	// AdvanceTwoFactorStep moves the accepted-step high-water mark to step.
	// It reports false (no error) when step is not greater than the stored mark.
	AdvanceTwoFactorStep(ctx context.Context, userID string, step int64) (bool, error)
}

/*
PasswordHasher
--------------
Abstracts bcrypt.
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenSigner
-----------
Issues and verifies access tokens (JWT).
Used by service + auth middleware.
*/
type TokenClaims struct {
	UserID string
	Exp    time.Time
}

type TokenSigner interface {
	SignAccessToken(userID string, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (TokenClaims, error)
}

/*
SecretManager / CodeVerifier / QRRenderer
-----------------------------------------
TOTP provisioning and verification.
*/
type TOTPSecret struct {
	Secret string // base32
	URI    string // otpauth:// provisioning URI
}

type SecretManager interface {
	Generate(accountName string) (TOTPSecret, error)
}

type CodeVerifier interface {
	// Verify returns the matched time step when code is valid for secret at
	// the given instant (within the configured skew window).
	Verify(secret, code string, at time.Time) (step int64, ok bool)
}

type QRRenderer interface {
	Render(ctx context.Context, uri string) ([]byte, error)
}

/*
EventPublisher
--------------
Publishes security events to RabbitMQ so downstream services can notify the
account owner. Best effort: failures never fail the request.
*/
type EventPublisher interface {
	PublishSecurityEvent(ctx context.Context, evt SecurityEvent) error
}

const (
	EventUserRegistered    = "auth.user.registered"
	EventTwoFactorEnabled  = "auth.2fa.enabled"
	EventTwoFactorDisabled = "auth.2fa.disabled"
)

type SecurityEvent struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}
