package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phonetica/phonauth"
)

const usersEmailKey = "users_email_key"

// Users is a phonauth.UserRepository backed by the users table.
type Users struct {
	pool *pgxpool.Pool
}

var _ phonauth.UserRepository = (*Users)(nil)

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

const userColumns = `id, email, name, password_hash, timezone, native_language_code,
	has_access, created_at, last_login, last_active`

func (r *Users) FindByEmail(ctx context.Context, email string) (phonauth.User, error) {
	if r.pool == nil {
		return phonauth.User{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE email = $1
`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return phonauth.User{}, phonauth.ErrUserNotFound
		}
		return phonauth.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

// Create inserts user. Zero timestamps default to the database clock.
func (r *Users) Create(ctx context.Context, user phonauth.User) (phonauth.User, error) {
	if r.pool == nil {
		return phonauth.User{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO users (
	email, name, password_hash, timezone, native_language_code,
	has_access, created_at, last_login, last_active
)
VALUES (
	$1, $2, $3, $4, $5, $6,
	COALESCE($7, NOW()), COALESCE($8, NOW()), COALESCE($9, CURRENT_DATE)
)
RETURNING `+userColumns+`
`,
		user.Email,
		user.Name,
		nullString(user.PasswordHash),
		user.Timezone,
		nullString(user.NativeLanguage),
		user.HasAccess,
		nullTime(user.CreatedAt),
		nullTime(user.LastLogin),
		nullDate(user.LastActive),
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, usersEmailKey) {
			return phonauth.User{}, phonauth.ErrEmailTaken
		}
		return phonauth.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *Users) Save(ctx context.Context, user phonauth.User) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if user.ID <= 0 {
		return fmt.Errorf("save user: invalid id %d", user.ID)
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users SET
	name = $2,
	password_hash = $3,
	timezone = $4,
	native_language_code = $5,
	has_access = $6,
	last_login = COALESCE($7, last_login),
	last_active = COALESCE($8, last_active)
WHERE id = $1
`,
		user.ID,
		user.Name,
		nullString(user.PasswordHash),
		user.Timezone,
		nullString(user.NativeLanguage),
		user.HasAccess,
		nullTime(user.LastLogin),
		nullDate(user.LastActive),
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return phonauth.ErrUserNotFound
	}
	return nil
}

// Delete removes a user and, through the foreign key cascade, every
// session they hold. It returns the number of sessions removed.
func (r *Users) Delete(ctx context.Context, userID int64) (int64, error) {
	var removed int64
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
SELECT COUNT(*) FROM user_refresh_tokens WHERE user_id = $1
`, userID).Scan(&removed); err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return phonauth.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func scanUser(row pgx.Row) (phonauth.User, error) {
	var (
		user         phonauth.User
		passwordHash *string
		nativeLang   *string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&passwordHash,
		&user.Timezone,
		&nativeLang,
		&user.HasAccess,
		&user.CreatedAt,
		&user.LastLogin,
		&user.LastActive,
	)
	if err != nil {
		return phonauth.User{}, err
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if nativeLang != nil {
		user.NativeLanguage = *nativeLang
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.LastLogin = user.LastLogin.UTC()
	user.LastActive = user.LastActive.UTC()
	return user, nil
}

// nullString maps "" to SQL NULL. Google-only accounts have no password
// hash and most users have no native language.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// nullDate truncates t to its UTC calendar day for the last_active column.
func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC().Truncate(24 * time.Hour)
	return &t
}
