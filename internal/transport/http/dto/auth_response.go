package dto

// -------- Core auth --------

type MessageResponse struct {
	Msg string `json:"msg"`
}

type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse is returned when no second factor is needed.
type LoginResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"tokenType"`
	ExpiresIn int64    `json:"expiresIn"`
	User      UserView `json:"user"`
}

// LoginChallengeResponse is returned when the user must submit a TOTP code.
// QRCode is empty when the secret was not rotated.
type LoginChallengeResponse struct {
	Requires2FA bool   `json:"requires2FA"`
	QRCode      string `json:"qrCode,omitempty"`
	UserID      string `json:"userId"`
}

// -------- Two-factor --------

type Verify2FAResponse struct {
	Verified  bool   `json:"verified"`
	Token     string `json:"token,omitempty"`
	TokenType string `json:"tokenType,omitempty"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
	Msg       string `json:"msg,omitempty"`
}

type Setup2FAResponse struct {
	QRCode string `json:"qrCode"`
}

// -------- Profile --------

// ProfileResponse never carries the password hash or the TOTP secret.
type ProfileResponse struct {
	Email            string `json:"email"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
