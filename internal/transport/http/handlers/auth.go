package http_handlers

import (
	"net/http"

	"github.com/baechuer/totp-auth/internal/application/auth"
	"github.com/baechuer/totp-auth/internal/domain"
	"github.com/baechuer/totp-auth/internal/logger"
	"github.com/baechuer/totp-auth/internal/transport/http/dto"
	"github.com/baechuer/totp-auth/internal/transport/http/middleware"
	"github.com/baechuer/totp-auth/internal/transport/http/response"
)

type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	l := logger.WithCtx(r.Context())
	l.Info().
		Str("user_id", res.User.ID).
		Msg("user_registered")

	response.Created(w, dto.MessageResponse{Msg: "User registered successfully"})
}

// Login handles POST /api/auth/login. Users without 2FA get a token; the
// others get a challenge carrying their id and, when a new secret was
// provisioned, its QR code.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.ObserveLogin("", err)
		response.WriteError(w, r, err)
		return
	}

	if res.Requires2FA() {
		middleware.ObserveLogin(middleware.LoginChallenged, nil)
		response.OK(w, dto.LoginChallengeResponse{
			Requires2FA: true,
			QRCode:      res.QRCode,
			UserID:      res.User.ID,
		})
		return
	}

	middleware.ObserveLogin(middleware.LoginAuthenticated, nil)
	response.OK(w, dto.LoginResponse{
		Token:     res.Token.Token,
		TokenType: res.Token.TokenType,
		ExpiresIn: res.Token.ExpiresIn,
		User: dto.UserView{
			ID:    res.User.ID,
			Email: res.User.Email,
		},
	})
}

// Verify2FA handles POST /api/auth/2fa/verify. A wrong code is a normal
// outcome and answers 200 with verified=false.
func (h *AuthHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req dto.Verify2FARequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Verify2FA(r.Context(), req.UserID, req.Code)
	if err != nil {
		middleware.ObserveSecondFactor(middleware.VerifyErrored)
		response.WriteError(w, r, err)
		return
	}

	if !res.Verified {
		middleware.ObserveSecondFactor(middleware.VerifyRejected)
		response.OK(w, dto.Verify2FAResponse{Verified: false, Msg: "Invalid 2FA token"})
		return
	}

	middleware.ObserveSecondFactor(middleware.VerifyAccepted)
	response.OK(w, dto.Verify2FAResponse{
		Verified:  true,
		Token:     res.Token.Token,
		TokenType: res.Token.TokenType,
		ExpiresIn: res.Token.ExpiresIn,
	})
}

// Setup2FA handles POST /api/auth/2fa/setup (bearer)
func (h *AuthHandler) Setup2FA(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	res, err := h.svc.Setup2FA(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.Setup2FAResponse{QRCode: res.QRCode})
}

// Disable2FA handles POST /api/auth/2fa/disable (bearer)
func (h *AuthHandler) Disable2FA(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	if err := h.svc.Disable2FA(r.Context(), uid); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MessageResponse{Msg: "2FA disabled successfully"})
}

// Me handles GET /api/auth/user (bearer)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	p, err := h.svc.GetProfile(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.ProfileResponse{
		Email:            p.Email,
		TwoFactorEnabled: p.TwoFactorEnabled,
	})
}
