package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Priya8975/identity-service/internal/domain"
)

const userColumns = `id, name, email, email_verified, image, role, banned, ban_reason, is_anonymous, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image, &u.Role,
		&u.Banned, &u.BanReason, &u.IsAnonymous, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUser inserts the user and, when acct is non-nil, its first account.
func (s *PostgresStore) CreateUser(ctx context.Context, u *domain.User, acct *domain.Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, name, email, email_verified, image, role, is_anonymous)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.EmailVerified, u.Image, u.Role, u.IsAnonymous).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	if acct != nil {
		if err := insertAccount(ctx, tx, acct); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns a page of users, newest first, and the total count.
func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func (s *PostgresStore) SetUserRole(ctx context.Context, id, role string) error {
	return s.updateUser(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

func (s *PostgresStore) SetUserBanned(ctx context.Context, id string, banned bool, reason *string) error {
	return s.updateUser(ctx, `UPDATE users SET banned = $2, ban_reason = $3, updated_at = NOW() WHERE id = $1`, id, banned, reason)
}

func (s *PostgresStore) MarkEmailVerified(ctx context.Context, id string) error {
	return s.updateUser(ctx, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (s *PostgresStore) updateUser(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %v not found", args[0])
	}
	return nil
}

func insertAccount(ctx context.Context, q interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, a *domain.Account) error {
	_, err := q.Exec(ctx, `
		INSERT INTO accounts (id, user_id, provider_id, account_id, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.UserID, a.ProviderID, a.AccountID, a.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	return insertAccount(ctx, s.pool, a)
}

// GetAccount finds the account a provider knows as accountID.
func (s *PostgresStore) GetAccount(ctx context.Context, providerID, accountID string) (*domain.Account, error) {
	return s.queryAccount(ctx, `
		SELECT id, user_id, provider_id, account_id, password_hash, created_at
		FROM accounts WHERE provider_id = $1 AND account_id = $2
	`, providerID, accountID)
}

// GetUserAccount finds the user's account with the given provider.
func (s *PostgresStore) GetUserAccount(ctx context.Context, userID, providerID string) (*domain.Account, error) {
	return s.queryAccount(ctx, `
		SELECT id, user_id, provider_id, account_id, password_hash, created_at
		FROM accounts WHERE user_id = $1 AND provider_id = $2
	`, userID, providerID)
}

func (s *PostgresStore) queryAccount(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var a domain.Account
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &a.PasswordHash, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, userID, hash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2
		WHERE user_id = $1 AND provider_id = $3
	`, userID, hash, domain.ProviderCredential)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no credential account for user %s", userID)
	}
	return nil
}
