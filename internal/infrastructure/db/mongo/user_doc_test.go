package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/baechuer/totp-auth/internal/domain"
)

func TestUserDoc_BSONShape(t *testing.T) {
	u := domain.User{
		ID:                "u1",
		Email:             "a@b.com",
		PasswordHash:      "h",
		TwoFactorSecret:   "S",
		TwoFactorEnabled:  true,
		TwoFactorLastStep: 9,
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	raw, err := bson.Marshal(fromDomain(u))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "u1", m["_id"])
	assert.Equal(t, "a@b.com", m["email"])
	assert.Equal(t, "S", m["two_factor_secret"])
	assert.Equal(t, true, m["two_factor_enabled"])
	assert.Equal(t, int64(9), m["two_factor_last_step"])

	var back userDoc
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, u, back.toDomain())
}

func TestUserDoc_EmptySecretOmitted(t *testing.T) {
	raw, err := bson.Marshal(fromDomain(domain.User{ID: "u1", Email: "a@b.com"}))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	_, present := m["two_factor_secret"]
	assert.False(t, present)
}
