package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/totp-auth/internal/domain"
)

// bcrypt only looks at the first 72 bytes; longer inputs are refused rather
// than silently truncated.
const maxPasswordBytes = 72

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", domain.ErrWeakPassword("password longer than 72 bytes")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(b), nil
}

// Compare returns nil on match and ErrInvalidCredentials otherwise, including
// for malformed stored hashes.
func (h *BcryptHasher) Compare(hash string, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidCredentials()
	}
	return domain.Wrap(domain.KindAuth, domain.CodeInvalidCredentials, "invalid credentials", err)
}
