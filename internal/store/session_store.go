package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/identity-service/internal/domain"
)

func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, token, user_id, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, sess.ID, sess.Token, sess.UserID, sess.ExpiresAt, sess.IPAddress, sess.UserAgent).Scan(&sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession returns the session for token joined with its user. Expired
// sessions are returned as well; callers check expiry.
func (s *PostgresStore) GetSession(ctx context.Context, token string) (*domain.SessionWithUser, error) {
	var out domain.SessionWithUser
	sess := &out.Session
	u := &out.User

	err := s.pool.QueryRow(ctx, `
		SELECT s.id, s.token, s.user_id, s.expires_at, COALESCE(s.ip_address, ''), COALESCE(s.user_agent, ''), s.created_at,
		       u.id, u.name, u.email, u.email_verified, u.image, u.role, u.banned, u.ban_reason, u.is_anonymous, u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
	`, token).Scan(
		&sess.ID, &sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.IPAddress, &sess.UserAgent, &sess.CreatedAt,
		&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image, &u.Role, &u.Banned, &u.BanReason, &u.IsAnonymous, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteUserSessions revokes every session of a user and returns their tokens.
func (s *PostgresStore) DeleteUserSessions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING token`, userID)
	if err != nil {
		return nil, fmt.Errorf("deleting user sessions: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting revoked sessions: %w", err)
	}
	return tokens, nil
}

// CreateVerification stores a verification value, replacing any previous
// value for the same identifier.
func (s *PostgresStore) CreateVerification(ctx context.Context, v *domain.Verification) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO verifications (id, identifier, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier) DO UPDATE
		SET id = EXCLUDED.id, value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, created_at = NOW()
		RETURNING created_at
	`, v.ID, v.Identifier, v.Value, v.ExpiresAt).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting verification: %w", err)
	}
	return nil
}

// GetVerification returns the verification for identifier without consuming it.
func (s *PostgresStore) GetVerification(ctx context.Context, identifier string) (*domain.Verification, error) {
	var v domain.Verification
	err := s.pool.QueryRow(ctx, `
		SELECT id, identifier, value, expires_at, created_at FROM verifications WHERE identifier = $1
	`, identifier).Scan(&v.ID, &v.Identifier, &v.Value, &v.ExpiresAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying verification: %w", err)
	}
	return &v, nil
}

// ConsumeVerification deletes and returns the verification for identifier.
// Each value can be consumed once.
func (s *PostgresStore) ConsumeVerification(ctx context.Context, identifier string) (*domain.Verification, error) {
	var v domain.Verification
	err := s.pool.QueryRow(ctx, `
		DELETE FROM verifications WHERE identifier = $1
		RETURNING id, identifier, value, expires_at, created_at
	`, identifier).Scan(&v.ID, &v.Identifier, &v.Value, &v.ExpiresAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consuming verification: %w", err)
	}
	return &v, nil
}
