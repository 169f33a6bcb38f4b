package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/totp-auth/internal/domain"
	"github.com/baechuer/totp-auth/internal/infrastructure/redis"
	"github.com/baechuer/totp-auth/internal/logger"
)

type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error)
}

// FixedWindowConfig defines the configuration for a fixed-window rate limit.
type FixedWindowConfig struct {
	RouteKey string
	Limit    int
	Window   time.Duration
}

// RateLimitFixedWindow limits requests per route and caller (user id when
// authenticated, client IP otherwise). Limiter errors fail open.
func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RouteKey == "" {
		cfg.RouteKey = "unknown"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.RouteKey + ":" + userOrIP(r)

			dec, err := limiter.AllowFixedWindow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				l := logger.WithCtx(r.Context())
				l.Warn().Err(err).Str("route", cfg.RouteKey).Msg("rate limiter unavailable; allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				rateLimited.WithLabelValues(cfg.RouteKey).Inc()
				retry := int(dec.RetryAfter.Round(time.Second).Seconds())
				if retry < 1 {
					retry = 1
				}
				writeErr(w, r, domain.WithMeta(domain.ErrRateLimited(cfg.RouteKey), map[string]string{
					"scope":               cfg.RouteKey,
					"retry_after_seconds": strconv.Itoa(retry),
				}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// userOrIP prefers the JWT userID if present; otherwise falls back to client IP.
func userOrIP(r *http.Request) string {
	if uid, ok := UserIDFromContext(r.Context()); ok && strings.TrimSpace(uid) != "" {
		return "u:" + uid
	}
	return "ip:" + clientIP(r)
}

// clientIP reads RemoteAddr. The router runs chi's RealIP first, which
// already rewrites it from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}
