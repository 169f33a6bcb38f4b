package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/totp-auth/internal/domain"
)

// Hasher is the minimal surface we need for seeding.
type Hasher interface {
	Hash(password string) (string, error)
}

// DevUser is the account seeded for local development.
const (
	DevUserEmail    = "user@example.com"
	DevUserPassword = "UserPassword123!"
)

// SeedUsers creates initial users for local development (in-memory only).
// Safe to call multiple times (duplicates ignored).
func SeedUsers(ctx context.Context, users *UserRepo, hasher Hasher, log zerolog.Logger) {
	hash, err := hasher.Hash(DevUserPassword)
	if err != nil {
		log.Warn().Err(err).Str("email", DevUserEmail).Msg("seed hash failed")
		return
	}

	_, err = users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Email:        DevUserEmail,
		PasswordHash: hash,
	})
	if err != nil && !domain.Is(err, domain.CodeDuplicateUser) {
		log.Warn().Err(err).Str("email", DevUserEmail).Msg("seed create failed")
		return
	}

	log.Info().Str("email", DevUserEmail).Msg("in-memory users seeded")
}
