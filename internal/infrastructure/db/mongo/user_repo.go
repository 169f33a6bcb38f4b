// Package mongo is the document-store backend for users.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/baechuer/totp-auth/internal/domain"
)

const usersCollection = "users"

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique email index. Idempotent.
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	return err
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepo) updateOne(ctx context.Context, id string, set bson.D) error {
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	// mongo stores milliseconds
	u.CreatedAt = u.CreatedAt.Truncate(time.Millisecond)

	if _, err := r.coll.InsertOne(ctx, fromDomain(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, domain.ErrDuplicateUser()
		}
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	return u, nil
}

func (r *UserRepo) SetTwoFactorVerified(ctx context.Context, userID string, verified bool) error {
	return r.updateOne(ctx, userID, bson.D{{Key: "two_factor_verified", Value: verified}})
}

func (r *UserRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string, enabled bool) error {
	return r.updateOne(ctx, userID, bson.D{
		{Key: "two_factor_secret", Value: secret},
		{Key: "two_factor_enabled", Value: enabled},
		{Key: "two_factor_last_step", Value: int64(0)},
	})
}

func (r *UserRepo) ClearTwoFactor(ctx context.Context, userID string) error {
	return r.updateOne(ctx, userID, bson.D{
		{Key: "two_factor_secret", Value: ""},
		{Key: "two_factor_enabled", Value: false},
		{Key: "two_factor_verified", Value: false},
		{Key: "two_factor_last_step", Value: int64(0)},
	})
}

func (r *UserRepo) AdvanceTwoFactorStep(ctx context.Context, userID string, step int64) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "two_factor_last_step", Value: bson.D{{Key: "$lt", Value: step}}},
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "two_factor_last_step", Value: step}}}})
	if err != nil {
		return false, domain.ErrStoreUnavailable(err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return false, domain.ErrStoreUnavailable(err)
	}
	if n == 0 {
		return false, domain.ErrUserNotFound()
	}
	return false, nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}
