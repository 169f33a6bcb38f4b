package dto

import "strings"

// -------- Core auth --------

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return validateStruct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return validateStruct(r)
}

// -------- Two-factor --------

// Verify2FARequest carries the user id returned by login and the code from
// the authenticator app. The code field is named "token" on the wire.
type Verify2FARequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
	Code   string `json:"token" validate:"required,max=16"`
}

func (r *Verify2FARequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Code = strings.TrimSpace(r.Code)
	return validateStruct(r)
}
