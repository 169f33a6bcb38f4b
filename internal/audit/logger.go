package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Actions emitted by the auth service.
const (
	ActionRegistered        = "registered"
	ActionRegisterFailed    = "register_failed"
	ActionLoginSuccess      = "login_success"
	ActionLoginFailed       = "login_failed"
	ActionChallengeIssued   = "2fa_challenge_issued"
	ActionTwoFactorVerified = "2fa_verified"
	ActionTwoFactorFailed   = "2fa_failed"
	ActionTwoFactorEnabled  = "2fa_enabled"
	ActionTwoFactorDisabled = "2fa_disabled"
)

var messages = map[string]string{
	ActionRegistered:        "User registered",
	ActionRegisterFailed:    "Registration rejected",
	ActionLoginSuccess:      "User logged in successfully",
	ActionLoginFailed:       "Login attempt failed",
	ActionChallengeIssued:   "Second factor challenge issued",
	ActionTwoFactorVerified: "Second factor verified",
	ActionTwoFactorFailed:   "Second factor rejected",
	ActionTwoFactorEnabled:  "Two-factor authentication enabled",
	ActionTwoFactorDisabled: "Two-factor authentication disabled",
}

// Logger provides structured audit logging for auth business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record writes one audit event. Failures are logged at warn level, the rest
// at info. Any "email" field is masked.
func (l *Logger) Record(action string, fields map[string]string) {
	evt := l.log.Info()
	if strings.HasSuffix(action, "_failed") {
		evt = l.log.Warn()
	}
	evt = evt.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		evt = evt.Str(k, v)
	}

	msg, ok := messages[action]
	if !ok {
		msg = "audit"
	}
	evt.Msg(msg)
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email[:2] + "***"
	}
	// Show first 2 chars and domain
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
