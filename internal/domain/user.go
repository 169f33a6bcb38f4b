package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string

	// TwoFactorSecret is the base32 TOTP shared secret. Empty when 2FA was
	// never provisioned or has been disabled.
	TwoFactorSecret  string
	TwoFactorEnabled bool
	// TwoFactorVerified is scoped to the current login attempt. Login resets
	// it before any challenge is issued.
	TwoFactorVerified bool
	// TwoFactorLastStep is the highest accepted TOTP step for the current
	// secret (replay protection). Zero whenever the secret changes.
	TwoFactorLastStep int64

	CreatedAt time.Time
}

// HasSecret reports whether a TOTP secret is provisioned.
func (u User) HasSecret() bool { return u.TwoFactorSecret != "" }

// NeedsSecondFactor reports whether the Access Gate must block this user until
// a 2FA handshake completes.
func (u User) NeedsSecondFactor() bool {
	return u.TwoFactorEnabled && !u.TwoFactorVerified
}
