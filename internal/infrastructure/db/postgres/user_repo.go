package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/totp-auth/internal/domain"
)

const uniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

// execOne runs a single-row UPDATE and maps zero affected rows to not found.
func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg string) (domain.User, error) {
	ur, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	return toDomainUser(ur), nil
}

// ---------- auth.UserRepo ----------

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	if u.PasswordHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}

	q := `
INSERT INTO users (id, email, password_hash, two_factor_enabled)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

	ur, err := scanUser(r.db.QueryRowContext(ctx, q, u.ID, u.Email, u.PasswordHash, u.TwoFactorEnabled))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrDuplicateUser()
		}
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) SetTwoFactorVerified(ctx context.Context, userID string, verified bool) error {
	return r.execOne(ctx, `UPDATE users SET two_factor_verified = $2 WHERE id = $1`, userID, verified)
}

func (r *UserRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string, enabled bool) error {
	const q = `
UPDATE users
SET two_factor_secret = $2,
    two_factor_enabled = $3,
    two_factor_last_step = 0
WHERE id = $1`
	return r.execOne(ctx, q, userID, secret, enabled)
}

func (r *UserRepo) ClearTwoFactor(ctx context.Context, userID string) error {
	const q = `
UPDATE users
SET two_factor_secret = NULL,
    two_factor_enabled = FALSE,
    two_factor_verified = FALSE,
    two_factor_last_step = 0
WHERE id = $1`
	return r.execOne(ctx, q, userID)
}

// AdvanceTwoFactorStep is a compare-and-set on the step mark; concurrent
// submissions of the same code race on the row and only one wins.
func (r *UserRepo) AdvanceTwoFactorStep(ctx context.Context, userID string, step int64) (bool, error) {
	const q = `
UPDATE users
SET two_factor_last_step = $2
WHERE id = $1 AND two_factor_last_step < $2`

	res, err := r.db.ExecContext(ctx, q, userID, step)
	if err != nil {
		return false, domain.ErrStoreUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.ErrStoreUnavailable(err)
	}
	if n == 1 {
		return true, nil
	}

	// zero rows: either a stale step or no such user
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, domain.ErrStoreUnavailable(err)
	}
	if !exists {
		return false, domain.ErrUserNotFound()
	}
	return false, nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
