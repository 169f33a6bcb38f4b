package mongo

import (
	"time"

	"github.com/baechuer/totp-auth/internal/domain"
)

// userDoc is the stored shape of a user. The id is the service-generated
// UUID, not an ObjectID, so tokens stay backend independent.
type userDoc struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	PasswordHash      string    `bson:"password_hash"`
	TwoFactorSecret   string    `bson:"two_factor_secret,omitempty"`
	TwoFactorEnabled  bool      `bson:"two_factor_enabled"`
	TwoFactorVerified bool      `bson:"two_factor_verified"`
	TwoFactorLastStep int64     `bson:"two_factor_last_step"`
	CreatedAt         time.Time `bson:"created_at"`
}

func fromDomain(u domain.User) userDoc {
	return userDoc{
		ID:                u.ID,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		TwoFactorSecret:   u.TwoFactorSecret,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		TwoFactorVerified: u.TwoFactorVerified,
		TwoFactorLastStep: u.TwoFactorLastStep,
		CreatedAt:         u.CreatedAt,
	}
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:                d.ID,
		Email:             d.Email,
		PasswordHash:      d.PasswordHash,
		TwoFactorSecret:   d.TwoFactorSecret,
		TwoFactorEnabled:  d.TwoFactorEnabled,
		TwoFactorVerified: d.TwoFactorVerified,
		TwoFactorLastStep: d.TwoFactorLastStep,
		CreatedAt:         d.CreatedAt,
	}
}
