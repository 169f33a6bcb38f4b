package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/totp-auth/internal/domain"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

type SeederRepo interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
}

// SeedUsers inserts the development account. Restart safe.
func SeedUsers(ctx context.Context, repo SeederRepo, hasher SeederHasher, email, password string, log zerolog.Logger) {
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
	switch {
	case err == nil:
		log.Info().Str("email", email).Msg("postgres user seeded")
	case domain.Is(err, domain.CodeDuplicateUser):
		// already there
	default:
		log.Warn().Err(err).Str("email", email).Msg("seed create failed")
	}
}
