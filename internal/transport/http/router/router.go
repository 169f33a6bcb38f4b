package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/baechuer/totp-auth/internal/transport/http/middleware"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	// Core auth
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)

	// Two-factor
	Verify2FA(w http.ResponseWriter, r *http.Request)
	Setup2FA(w http.ResponseWriter, r *http.Request)
	Disable2FA(w http.ResponseWriter, r *http.Request)
}

type DashboardHandler interface {
	Get(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health    HealthHandler
	Auth      AuthHandler
	Dashboard DashboardHandler

	// AuthMW verifies the bearer token; SecondFactorMW additionally blocks
	// users whose 2FA handshake is pending.
	AuthMW         Middleware
	SecondFactorMW Middleware

	// Optional per-route rate limits; nil disables the limit.
	RLRegister  Middleware
	RLLogin     Middleware
	RLVerify2FA Middleware
	RLSetup2FA  Middleware

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Dashboard == nil {
		return nil, fmt.Errorf("nil Dashboard handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.SecondFactorMW == nil {
		return nil, fmt.Errorf("nil SecondFactor middleware")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		// --- Core auth ---
		r.With(optional(deps.RLRegister)...).Post("/register", deps.Auth.Register)
		r.With(optional(deps.RLLogin)...).Post("/login", deps.Auth.Login)
		r.With(deps.AuthMW).Get("/user", deps.Auth.Me)

		// --- Two-factor ---
		r.Route("/2fa", func(r chi.Router) {
			r.With(optional(deps.RLVerify2FA)...).Post("/verify", deps.Auth.Verify2FA)
			r.With(append([]Middleware{deps.AuthMW}, optional(deps.RLSetup2FA)...)...).
				Post("/setup", deps.Auth.Setup2FA)
			r.With(deps.AuthMW).Post("/disable", deps.Auth.Disable2FA)
		})
	})

	r.With(deps.AuthMW, deps.SecondFactorMW).Get("/dashboard", deps.Dashboard.Get)

	return r, nil
}

func optional(mws ...Middleware) []Middleware {
	out := make([]Middleware, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
