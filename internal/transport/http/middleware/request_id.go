package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	appCtx "github.com/baechuer/totp-auth/internal/pkg/context"
)

const (
	HeaderXRequestID = "X-Request-Id"

	maxRequestIDLen = 128
)

// RequestID propagates the caller's X-Request-Id when it is usable and mints
// a uuid otherwise. The id is echoed back and put in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderXRequestID))
		if !usableRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderXRequestID, id)
		next.ServeHTTP(w, r.WithContext(appCtx.WithRequestID(r.Context(), id)))
	})
}

// usableRequestID rejects empty, oversized and non-printable ids; they end
// up verbatim in log lines.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
