package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/baechuer/totp-auth/internal/domain"
	"github.com/baechuer/totp-auth/internal/logger"
)

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

var kindStatus = map[domain.ErrKind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindAuth:           http.StatusUnauthorized,
	domain.KindForbidden:      http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindConflict:       http.StatusConflict,
	domain.KindRateLimited:    http.StatusTooManyRequests,
	domain.KindInfrastructure: http.StatusServiceUnavailable,
	domain.KindInternal:       http.StatusInternalServerError,
}

var internalPayload = ErrorPayload{Code: "internal_error", Message: "internal error"}

// WriteError renders err as the JSON error envelope. Only domain errors reach
// the client verbatim; anything else becomes a bare 500. Causes are logged,
// never written.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	payload := internalPayload

	var de *domain.Error
	if errors.As(err, &de) {
		status = statusFromKind(de.Kind)
		payload = ErrorPayload{Code: de.Code, Message: de.Message, Meta: de.Meta}
	}
	payload.RequestID = RequestIDFromContext(r)

	if status >= http.StatusInternalServerError {
		l := logger.WithCtx(r.Context())
		l.Error().Err(err).Str("code", payload.Code).Str("path", r.URL.Path).Msg("request failed")
	}

	h := w.Header()
	switch status {
	case http.StatusUnauthorized:
		h.Set("WWW-Authenticate", bearerChallenge(payload.Code))
	case http.StatusTooManyRequests:
		if secs, convErr := strconv.Atoi(payload.Meta["retry_after_seconds"]); convErr == nil && secs > 0 {
			h.Set("Retry-After", strconv.Itoa(secs))
		}
	}

	WriteJSON(w, status, ErrorBody{Error: payload})
}

func statusFromKind(kind domain.ErrKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// bearerChallenge follows RFC 6750 section 3: a request without credentials
// gets the bare scheme, a rejected token gets error="invalid_token".
func bearerChallenge(code string) string {
	switch code {
	case domain.CodeTokenInvalid, domain.CodeTokenExpired:
		return `Bearer error="invalid_token"`
	default:
		return "Bearer"
	}
}
