package middleware

import (
	"net/http"
	"time"

	"github.com/baechuer/totp-auth/internal/logger"
)

// AccessLog writes one line per request. Server errors log at error level,
// client errors at warn.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		l := logger.WithCtx(r.Context())
		evt := l.Info()
		switch {
		case rec.status >= 500:
			evt = l.Error()
		case rec.status >= 400:
			evt = l.Warn()
		}
		evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("remote_ip", clientIP(r)).
			Msg("http request")
	})
}
