package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baechuer/totp-auth/internal/domain"
)

// Credentials and 2FA codes are tiny; anything near this is abuse.
const maxBodyBytes = 64 << 10

var (
	errEmptyBody     = errors.New("empty body")
	errBodyTooLarge  = errors.New("body too large")
	errTrailingValue = errors.New("multiple JSON values")
)

// DecodeJSON reads exactly one JSON value from the request body into dst.
// Unknown fields are ignored. Every failure is an invalid_json domain error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return domain.ErrInvalidJSON(errEmptyBody)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(classify(err))
	}
	switch err := dec.Decode(&struct{}{}); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return domain.ErrInvalidJSON(classify(err))
	default:
		return domain.ErrInvalidJSON(errTrailingValue)
	}
}

func classify(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return errBodyTooLarge
	case errors.Is(err, io.EOF):
		return errEmptyBody
	default:
		return err
	}
}
