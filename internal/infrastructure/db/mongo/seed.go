package mongo

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/totp-auth/internal/domain"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

// SeedUsers inserts the development account. The unique email index makes
// restarts safe.
func SeedUsers(ctx context.Context, repo *UserRepo, hasher SeederHasher, email, password string, log zerolog.Logger) {
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("seed hash failed")
		return
	}

	_, err = repo.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil && !domain.Is(err, domain.CodeDuplicateUser) {
		log.Warn().Err(err).Str("email", email).Msg("seed create failed")
		return
	}
	if err == nil {
		log.Info().Str("email", email).Msg("mongo user seeded")
	}
}
