// Package postgres implements the CredentialStore on PostgreSQL via pgx.
// The accounts table carries a unique index on email, which is the
// authoritative guard against duplicate signups; lockout updates run as a
// single conditional UPDATE so concurrent failures cannot lose increments.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seralith/authgate"
)

const uniqueViolation = "23505"

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a pgx-backed CredentialStore.
type Store struct {
	pool Pool
}

// New creates a Store on the given pool. The caller owns the pool.
func New(pool Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id, name, email, password_hash, password_history,
	password_changed_at, failed_login_attempts, locked_until, role,
	verified, totp_enabled, totp_secret, otp_code, otp_expires_at, created_at`

func scanAccount(row pgx.Row) (authgate.Account, error) {
	var (
		a            authgate.Account
		lockedUntil  *time.Time
		otpExpiresAt *time.Time
		totpSecret   *string
		otpCode      *string
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.PasswordHistory,
		&a.PasswordChangedAt, &a.FailedLoginAttempts, &lockedUntil, &a.Role,
		&a.Verified, &a.TOTPEnabled, &totpSecret, &otpCode, &otpExpiresAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authgate.Account{}, authgate.ErrAccountNotFound
		}
		return authgate.Account{}, fmt.Errorf("%w: %v", authgate.ErrStoreUnavailable, err)
	}
	if lockedUntil != nil {
		a.LockedUntil = *lockedUntil
	}
	if otpExpiresAt != nil {
		a.OTPExpiresAt = *otpExpiresAt
	}
	if totpSecret != nil {
		a.TOTPSecret = *totpSecret
	}
	if otpCode != nil {
		a.OTPCode = *otpCode
	}
	return a, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FindByEmail implements [authgate.CredentialStore].
func (s *Store) FindByEmail(ctx context.Context, email string) (authgate.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = lower(trim($1))`
	return scanAccount(s.pool.QueryRow(ctx, query, email))
}

// FindByID implements [authgate.CredentialStore].
func (s *Store) FindByID(ctx context.Context, id string) (authgate.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.pool.QueryRow(ctx, query, id))
}

// Insert implements [authgate.CredentialStore]. The unique index on email
// turns a duplicate into ErrEmailExists.
func (s *Store) Insert(ctx context.Context, account authgate.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, name, email, password_hash, password_history,
			password_changed_at, failed_login_attempts, locked_until, role,
			verified, totp_enabled, totp_secret, otp_code, otp_expires_at, created_at
		) VALUES ($1, $2, lower(trim($3)), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		account.ID, account.Name, account.Email, account.PasswordHash, account.PasswordHistory,
		account.PasswordChangedAt, account.FailedLoginAttempts, nullableTime(account.LockedUntil), account.Role,
		account.Verified, account.TOTPEnabled, nullableString(account.TOTPSecret),
		nullableString(account.OTPCode), nullableTime(account.OTPExpiresAt), account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authgate.ErrEmailExists
		}
		return fmt.Errorf("%w: %v", authgate.ErrStoreUnavailable, err)
	}
	return nil
}

// Update implements [authgate.CredentialStore].
func (s *Store) Update(ctx context.Context, account authgate.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET
			name = $2,
			email = lower(trim($3)),
			password_hash = $4,
			password_history = $5,
			password_changed_at = $6,
			failed_login_attempts = $7,
			locked_until = $8,
			role = $9,
			verified = $10,
			totp_enabled = $11,
			totp_secret = $12,
			otp_code = $13,
			otp_expires_at = $14
		WHERE id = $1`,
		account.ID, account.Name, account.Email, account.PasswordHash, account.PasswordHistory,
		account.PasswordChangedAt, account.FailedLoginAttempts, nullableTime(account.LockedUntil), account.Role,
		account.Verified, account.TOTPEnabled, nullableString(account.TOTPSecret),
		nullableString(account.OTPCode), nullableTime(account.OTPExpiresAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authgate.ErrEmailExists
		}
		return fmt.Errorf("%w: %v", authgate.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authgate.ErrAccountNotFound
	}
	return nil
}

// RecordLoginFailure implements [authgate.CredentialStore]. The increment
// and the threshold decision happen in one UPDATE, so concurrent failures
// never lose increments. Every failure at or past the threshold starts a
// fresh lock window, covering counters left above the threshold by a
// lapsed lock.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (authgate.Account, error) {
	query := `
		UPDATE accounts SET
			failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3::timestamptz
				ELSE locked_until
			END
		WHERE id = $1
		RETURNING ` + accountColumns
	return scanAccount(s.pool.QueryRow(ctx, query, id, threshold, now.Add(lockFor)))
}

// ClearLockout implements [authgate.CredentialStore].
func (s *Store) ClearLockout(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", authgate.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authgate.ErrAccountNotFound
	}
	return nil
}

// List implements [authgate.CredentialStore].
func (s *Store) List(ctx context.Context) ([]authgate.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authgate.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []authgate.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", authgate.ErrStoreUnavailable, err)
	}
	return out, nil
}
