// Package totp provides RFC 6238 secrets, code verification and QR rendering
// for the second factor.
package totp

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/baechuer/totp-auth/internal/application/auth"
)

const (
	period     = 30
	secretSize = 20
)

// Manager generates base32 secrets and verifies 6-digit SHA1 codes with a
// skew window of whole periods on each side. The window is never below one
// step so ordinary clock drift is tolerated.
type Manager struct {
	issuer string
	window uint
}

func NewManager(issuer string, window int) *Manager {
	if window < 1 {
		window = 1
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "MyApp"
	}
	return &Manager{issuer: issuer, window: uint(window)}
}

// Generate returns a fresh secret and its otpauth URI. The account label is
// "<issuer> (<account>)".
func (m *Manager) Generate(accountName string) (auth.TOTPSecret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: m.issuer + " (" + accountName + ")",
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return auth.TOTPSecret{}, err
	}
	return auth.TOTPSecret{Secret: key.Secret(), URI: key.URL()}, nil
}

// Verify checks code against every step in [at-window, at+window] and
// returns the matching step number (unix seconds / period).
func (m *Manager) Verify(secret, code string, at time.Time) (int64, bool) {
	code = strings.TrimSpace(code)
	if len(code) != 6 || secret == "" {
		return 0, false
	}

	opts := totp.ValidateOpts{
		Period:    period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	w := int64(m.window)
	var (
		matched bool
		step    int64
	)
	// no early exit: every candidate is computed
	for i := -w; i <= w; i++ {
		t := at.Add(time.Duration(i*period) * time.Second)
		want, err := totp.GenerateCodeCustom(secret, t, opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 && !matched {
			matched = true
			step = t.Unix() / period
		}
	}
	return step, matched
}
