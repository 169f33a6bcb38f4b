package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baechuer/totp-auth/internal/application/auth"
	"github.com/baechuer/totp-auth/internal/domain"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (auth.TokenClaims, error)
}

// SecondFactorGate loads the caller and fails with SecondFactorRequired while
// a 2FA handshake is pending.
type SecondFactorGate interface {
	Authorize(ctx context.Context, userID string) (domain.User, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

func deny(writeErr WriteErrFunc, w http.ResponseWriter, r *http.Request, err error) {
	observeDenial(err)
	writeErr(w, r, err)
}

// Auth verifies Authorization: Bearer <access_token> and injects the subject
// into the request context. It never touches the user store.
func Auth(verifier TokenVerifier, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if strings.TrimSpace(h) == "" {
				deny(writeErr, w, r, domain.ErrTokenMissing())
				return
			}

			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				deny(writeErr, w, r, domain.ErrTokenInvalid())
				return
			}

			raw := strings.TrimSpace(parts[1])
			if raw == "" {
				deny(writeErr, w, r, domain.ErrTokenInvalid())
				return
			}

			claims, err := verifier.VerifyAccessToken(raw)
			if err != nil {
				deny(writeErr, w, r, err)
				return
			}

			if strings.TrimSpace(claims.UserID) == "" {
				deny(writeErr, w, r, domain.ErrTokenInvalid())
				return
			}

			ctx := WithUser(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSecondFactor must run after Auth. It blocks users with 2FA enabled
// whose current login has not passed verification.
func RequireSecondFactor(gate SecondFactorGate, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := UserIDFromContext(r.Context())
			if !ok {
				deny(writeErr, w, r, domain.ErrTokenMissing())
				return
			}

			if _, err := gate.Authorize(r.Context(), uid); err != nil {
				deny(writeErr, w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
