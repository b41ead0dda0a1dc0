package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seralith/authgate"
	"github.com/seralith/authgate/store/postgres"
)

var accountColumns = []string{
	"id", "name", "email", "password_hash", "password_history",
	"password_changed_at", "failed_login_attempts", "locked_until", "role",
	"verified", "totp_enabled", "totp_secret", "otp_code", "otp_expires_at", "created_at",
}

// anyArgs matches n positional parameters without pinning their values.
func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func accountRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumns).AddRow(
		"acct-1", "Test User", "a@x.com", "$argon2id$hash", []string{"$argon2id$hash"},
		now, 0, nil, authgate.RoleUser,
		true, false, nil, nil, nil, now,
	)
}

func TestFindByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email").
			WithArgs("a@x.com").
			WillReturnRows(accountRow(now))

		account, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", account.ID)
		assert.Equal(t, "a@x.com", account.Email)
		assert.True(t, account.LockedUntil.IsZero())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email").
			WithArgs("ghost@x.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.FindByEmail(ctx, "ghost@x.com")
		assert.ErrorIs(t, err, authgate.ErrAccountNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email").
			WithArgs("a@x.com").
			WillReturnError(fmt.Errorf("db error"))

		_, err := store.FindByEmail(ctx, "a@x.com")
		assert.ErrorIs(t, err, authgate.ErrStoreUnavailable)
	})
}

func TestFindByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email").
			WithArgs("acct-1").
			WillReturnRows(accountRow(time.Now()))

		account, err := store.FindByID(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", account.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email").
			WithArgs("acct-404").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.FindByID(ctx, "acct-404")
		assert.ErrorIs(t, err, authgate.ErrAccountNotFound)
	})
}

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()
	account := authgate.Account{
		ID:           "acct-1",
		Name:         "Test User",
		Email:        "a@x.com",
		PasswordHash: "$argon2id$hash",
		CreatedAt:    time.Now(),
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(anyArgs(15)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, store.Insert(ctx, account))
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(anyArgs(15)...).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, store.Insert(ctx, account), authgate.ErrEmailExists)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(anyArgs(15)...).
			WillReturnError(fmt.Errorf("db error"))

		assert.ErrorIs(t, store.Insert(ctx, account), authgate.ErrStoreUnavailable)
	})
}

func TestUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()
	account := authgate.Account{ID: "acct-1", Name: "Test User", Email: "a@x.com"}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, store.Update(ctx, account))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, store.Update(ctx, account), authgate.ErrAccountNotFound)
	})

	t.Run("email conflict", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(anyArgs(14)...).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, store.Update(ctx, account), authgate.ErrEmailExists)
	})
}

func TestRecordLoginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()
	now := time.Now()
	lockedUntil := now.Add(15 * time.Minute)

	t.Run("threshold reached", func(t *testing.T) {
		rows := pgxmock.NewRows(accountColumns).AddRow(
			"acct-1", "Test User", "a@x.com", "$argon2id$hash", []string{"$argon2id$hash"},
			now, 5, &lockedUntil, authgate.RoleUser,
			true, false, nil, nil, nil, now,
		)
		mock.ExpectQuery("UPDATE accounts").
			WithArgs("acct-1", 5, pgxmock.AnyArg()).
			WillReturnRows(rows)

		account, err := store.RecordLoginFailure(ctx, "acct-1", 5, 15*time.Minute, now)
		require.NoError(t, err)
		assert.Equal(t, 5, account.FailedLoginAttempts)
		assert.Equal(t, lockedUntil, account.LockedUntil)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery("UPDATE accounts").
			WithArgs("acct-404", 5, pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		_, err := store.RecordLoginFailure(ctx, "acct-404", 5, 15*time.Minute, now)
		assert.ErrorIs(t, err, authgate.ErrAccountNotFound)
	})
}

func TestClearLockout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET failed_login_attempts = 0").
			WithArgs("acct-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, store.ClearLockout(ctx, "acct-1"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET failed_login_attempts = 0").
			WithArgs("acct-404").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, store.ClearLockout(ctx, "acct-404"), authgate.ErrAccountNotFound)
	})
}

func TestList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.New(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(accountColumns).
			AddRow("acct-1", "First User", "a@x.com", "$argon2id$hash", []string{"$argon2id$hash"},
				now, 0, nil, authgate.RoleUser, true, false, nil, nil, nil, now).
			AddRow("acct-2", "Second User", "b@x.com", "$argon2id$hash", []string{"$argon2id$hash"},
				now, 0, nil, authgate.RoleAdmin, true, false, nil, nil, nil, now)
		mock.ExpectQuery("SELECT id, name, email").
			WillReturnRows(rows)

		accounts, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
		assert.Equal(t, "a@x.com", accounts[0].Email)
		assert.Equal(t, authgate.RoleAdmin, accounts[1].Role)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email").
			WillReturnError(fmt.Errorf("db error"))

		_, err := store.List(ctx)
		assert.ErrorIs(t, err, authgate.ErrStoreUnavailable)
	})
}
