package postgres

import (
	"database/sql"
	"time"

	"github.com/baechuer/totp-auth/internal/domain"
)

type userRow struct {
	ID                string
	Email             string
	PasswordHash      string
	TwoFactorSecret   sql.NullString
	TwoFactorEnabled  bool
	TwoFactorVerified bool
	TwoFactorLastStep int64
	CreatedAt         time.Time
}

const userColumns = `id, email, password_hash, two_factor_secret, two_factor_enabled, two_factor_verified, two_factor_last_step, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (userRow, error) {
	var ur userRow
	err := row.Scan(
		&ur.ID,
		&ur.Email,
		&ur.PasswordHash,
		&ur.TwoFactorSecret,
		&ur.TwoFactorEnabled,
		&ur.TwoFactorVerified,
		&ur.TwoFactorLastStep,
		&ur.CreatedAt,
	)
	return ur, err
}

func toDomainUser(ur userRow) domain.User {
	return domain.User{
		ID:                ur.ID,
		Email:             ur.Email,
		PasswordHash:      ur.PasswordHash,
		TwoFactorSecret:   ur.TwoFactorSecret.String,
		TwoFactorEnabled:  ur.TwoFactorEnabled,
		TwoFactorVerified: ur.TwoFactorVerified,
		TwoFactorLastStep: ur.TwoFactorLastStep,
		CreatedAt:         ur.CreatedAt,
	}
}
