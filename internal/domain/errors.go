package domain

import (
	"errors"
	"fmt"
	"maps"
)

// ErrKind groups codes by how the transport should answer them.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Stable machine codes. Clients switch on these.
const (
	CodeInvalidJSON  = "invalid_json"
	CodeMissingField = "missing_field"
	CodeInvalidField = "invalid_field"
	CodeWeakPassword = "weak_password"

	CodeInvalidCredentials   = "invalid_credentials"
	CodeTokenMissing         = "token_missing"
	CodeTokenInvalid         = "token_invalid"
	CodeTokenExpired         = "token_expired"
	CodeSecondFactorRequired = "second_factor_required"
	CodeUserNotFound         = "user_not_found"
	CodeDuplicateUser        = "duplicate_user"
	CodeRateLimited          = "rate_limited"

	CodeStoreUnavailable = "store_unavailable"
	CodeRenderFailed     = "render_failed"
	CodeHashFailed       = "hash_failed"
	CodeTokenSignFailed  = "token_sign_failed"
	CodeSecretFailed     = "secret_failed"
	CodeInternal         = "internal_error"
)

type entry struct {
	kind ErrKind
	msg  string
}

// catalogue holds the client-safe message for every code.
var catalogue = map[string]entry{
	CodeInvalidJSON:  {KindValidation, "invalid JSON body"},
	CodeMissingField: {KindValidation, "missing required field"},
	CodeInvalidField: {KindValidation, "invalid field"},
	CodeWeakPassword: {KindValidation, "password does not meet requirements"},

	CodeInvalidCredentials:   {KindAuth, "invalid credentials"},
	CodeTokenMissing:         {KindAuth, "no token, authorization denied"},
	CodeTokenInvalid:         {KindAuth, "token is not valid"},
	CodeTokenExpired:         {KindAuth, "token is expired"},
	CodeSecondFactorRequired: {KindForbidden, "2FA required, access denied"},
	CodeUserNotFound:         {KindNotFound, "user not found"},
	CodeDuplicateUser:        {KindConflict, "user already exists"},
	CodeRateLimited:          {KindRateLimited, "too many requests"},

	CodeStoreUnavailable: {KindInfrastructure, "credential store unavailable"},
	CodeRenderFailed:     {KindInternal, "QR code rendering failed"},
	CodeHashFailed:       {KindInternal, "password hashing failed"},
	CodeTokenSignFailed:  {KindInternal, "token signing failed"},
	CodeSecretFailed:     {KindInternal, "2FA secret generation failed"},
	CodeInternal:         {KindInternal, "internal error"},
}

// Error is the only error type that crosses the transport boundary with its
// details intact. Message and Meta are shown to clients; Cause is for logs.
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so errors.Is(err,
// ErrUserNotFound()) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// WithMeta merges meta into err's metadata and returns err.
func WithMeta(err *Error, meta map[string]string) *Error {
	if len(meta) == 0 {
		return err
	}
	if err.Meta == nil {
		err.Meta = make(map[string]string, len(meta))
	}
	maps.Copy(err.Meta, meta)
	return err
}

// Is reports whether err carries the given domain code anywhere in its chain.
func Is(err error, code string) bool {
	return CodeOf(err) == code && code != ""
}

// CodeOf returns the domain code of err, or "" for nil and non-domain errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func fromCatalogue(code string, cause error) *Error {
	e := catalogue[code]
	return Wrap(e.kind, code, e.msg, cause)
}

func withFields(code string, kv ...string) *Error {
	err := fromCatalogue(code, nil)
	err.Meta = make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		err.Meta[kv[i]] = kv[i+1]
	}
	return err
}

// validation

func ErrInvalidJSON(cause error) *Error { return fromCatalogue(CodeInvalidJSON, cause) }

func ErrMissingField(field string) *Error {
	return withFields(CodeMissingField, "field", field)
}

func ErrInvalidField(field, reason string) *Error {
	return withFields(CodeInvalidField, "field", field, "reason", reason)
}

func ErrWeakPassword(reason string) *Error {
	return withFields(CodeWeakPassword, "reason", reason)
}

// authentication and access

func ErrInvalidCredentials() *Error { return fromCatalogue(CodeInvalidCredentials, nil) }

// ErrTokenMissing is the unauthenticated case: no bearer token at all.
func ErrTokenMissing() *Error { return fromCatalogue(CodeTokenMissing, nil) }

func ErrTokenInvalid() *Error { return fromCatalogue(CodeTokenInvalid, nil) }

func ErrTokenExpired() *Error { return fromCatalogue(CodeTokenExpired, nil) }

func ErrSecondFactorRequired() *Error { return fromCatalogue(CodeSecondFactorRequired, nil) }

func ErrUserNotFound() *Error { return fromCatalogue(CodeUserNotFound, nil) }

func ErrDuplicateUser() *Error { return fromCatalogue(CodeDuplicateUser, nil) }

func ErrRateLimited(scope string) *Error {
	return withFields(CodeRateLimited, "scope", scope)
}

// infrastructure and internal

func ErrStoreUnavailable(cause error) *Error { return fromCatalogue(CodeStoreUnavailable, cause) }

func ErrRenderFailed(cause error) *Error { return fromCatalogue(CodeRenderFailed, cause) }

func ErrHashFailed(cause error) *Error { return fromCatalogue(CodeHashFailed, cause) }

func ErrTokenSignFailed(cause error) *Error { return fromCatalogue(CodeTokenSignFailed, cause) }

func ErrSecretFailed(cause error) *Error { return fromCatalogue(CodeSecretFailed, cause) }

func ErrInternal(cause error) *Error { return fromCatalogue(CodeInternal, cause) }
