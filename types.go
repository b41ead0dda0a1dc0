package authgate

import (
	"context"
	"time"
)

// Role is the coarse privilege level of an account. The engine knows two
// levels; finer-grained authorization belongs to the caller.
type Role int

const (
	// RoleUser is the default role assigned at signup.
	RoleUser Role = 0
	// RoleAdmin grants access to administrative operations.
	RoleAdmin Role = 1
)

// Account is the identity record persisted by a [CredentialStore].
//
// Email is stored normalized (trimmed, lower-cased) and is unique across all
// accounts. PasswordHistory holds the most recent hashes first, current hash
// included, and never exceeds the configured history limit. LockedUntil is
// the zero time unless the lockout guard set a lock.
type Account struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	PasswordHistory     []string
	PasswordChangedAt   time.Time
	FailedLoginAttempts int
	LockedUntil         time.Time
	Role                Role
	Verified            bool
	TOTPEnabled         bool
	TOTPSecret          string
	OTPCode             string
	OTPExpiresAt        time.Time
	CreatedAt           time.Time
}

// Locked reports whether the account is under an active lockout at now.
// A LockedUntil in the past is a stale lock and does not block access.
func (a Account) Locked(now time.Time) bool {
	return !a.LockedUntil.IsZero() && a.LockedUntil.After(now)
}

// CredentialStore is the persistence interface the engine consumes. The
// store is the authoritative guard for email uniqueness and must apply
// RecordLoginFailure atomically per account: concurrent failures may not
// lose increments, and the lock transition happens exactly once when the
// counter reaches the threshold.
//
// Implementations wrap transient infrastructure failures so that
// errors.Is(err, ErrStoreUnavailable) holds, and return ErrAccountNotFound
// and ErrEmailExists for the corresponding conditions.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	// Insert persists a new account, failing with ErrEmailExists when the
	// email is already registered. The uniqueness check and the write are
	// one atomic step.
	Insert(ctx context.Context, account Account) error
	// Update replaces the stored record for account.ID.
	Update(ctx context.Context, account Account) error
	// RecordLoginFailure atomically increments the failed-attempt counter
	// and, when the post-increment counter reaches threshold, sets
	// LockedUntil to now+lockFor. It returns the post-update record.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (Account, error)
	// ClearLockout resets the failed-attempt counter to zero and removes
	// any lock.
	ClearLockout(ctx context.Context, id string) error
	// List returns all accounts. Admin-only surface.
	List(ctx context.Context) ([]Account, error)
}

// Mailer delivers outbound notification mail. Failures after a committed
// state change surface as ErrMailDelivery and never roll the change back.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Clock supplies the current time. Injected so expiry and lockout behavior
// is testable; production engines use the system clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the [Clock] interface.
type ClockFunc func() time.Time

// Now implements [Clock].
func (f ClockFunc) Now() time.Time { return f() }

// Claims is the verified identity attached to a request after
// [Engine.Authenticate]. Role is the role embedded at token issuance and
// may be stale; [Engine.RequireAdmin] re-reads the stored role.
type Claims struct {
	AccountID string
	Email     string
	Role      Role
	SessionID string
}

// SignUpInput is the field set for [Engine.SignUp].
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUpResult is returned by [Engine.SignUp].
type SignUpResult struct {
	AccountID string
	Email     string
}

// SignInInput is the field set for [Engine.SignIn]. TOTPCode is required
// only when the account has a second factor enabled.
type SignInInput struct {
	Email    string
	Password string
	TOTPCode string
}

// SignInResult carries the bearer token and identity summary returned on
// successful signin.
type SignInResult struct {
	Token     string
	SessionID string
	AccountID string
	Email     string
	Role      Role
	ExpiresAt time.Time
}

// TOTPProvision holds the shared secret and otpauth:// URI returned by
// [Engine.ProvisionTOTP]. The secret is not active until confirmed via
// [Engine.ActivateTOTP].
type TOTPProvision struct {
	Secret string
	URI    string
}

// AccountSummary is the redacted account view returned by admin listings.
// Credential material never leaves the store through this surface.
type AccountSummary struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Verified  bool
	Locked    bool
	CreatedAt time.Time
}
