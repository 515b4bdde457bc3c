package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/session"
)

const refreshTokenKey = "user_refresh_tokens_token_key"

// Sessions is a phonauth.SessionStore backed by user_refresh_tokens.
type Sessions struct {
	pool *pgxpool.Pool
}

var _ phonauth.SessionStore = (*Sessions)(nil)

func NewSessions(pool *pgxpool.Pool) *Sessions {
	return &Sessions{pool: pool}
}

// Upsert replaces the token of (rec.UserID, rec.Device) or inserts a new
// row. A token already owned by another row yields session.ErrTokenConflict.
func (s *Sessions) Upsert(ctx context.Context, rec session.Record) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO user_refresh_tokens (user_id, device_info, token, issued_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, device_info) DO UPDATE SET
	token = EXCLUDED.token,
	issued_at = EXCLUDED.issued_at,
	expires_at = EXCLUDED.expires_at
`, rec.UserID, rec.Device, rec.Token, rec.IssuedAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		if isUniqueViolation(err, refreshTokenKey) {
			return session.ErrTokenConflict
		}
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Sessions) Find(ctx context.Context, userID int64, device string) (*session.Record, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	row := s.pool.QueryRow(ctx, `
SELECT user_id, device_info, token, issued_at, expires_at
FROM user_refresh_tokens
WHERE user_id = $1 AND device_info = $2
`, userID, device)
	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return rec, nil
}

func (s *Sessions) FindByToken(ctx context.Context, token string) (*session.Record, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if token == "" {
		return nil, session.ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `
SELECT user_id, device_info, token, issued_at, expires_at
FROM user_refresh_tokens
WHERE token = $1
`, token)
	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	return rec, nil
}

func (s *Sessions) Delete(ctx context.Context, userID int64, device string) (bool, error) {
	if s.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := s.pool.Exec(ctx, `
DELETE FROM user_refresh_tokens
WHERE user_id = $1 AND device_info = $2
`, userID, device)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSession(row pgx.Row) (*session.Record, error) {
	var rec session.Record
	if err := row.Scan(&rec.UserID, &rec.Device, &rec.Token, &rec.IssuedAt, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	rec.IssuedAt = rec.IssuedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}
