package authgate

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrWeakPassword is returned when a password fails the strength policy.
	// It matches ErrValidation under errors.Is.
	ErrWeakPassword = fmt.Errorf("%w: password too weak", ErrValidation)
	// ErrEmailExists is returned when signup targets an email that is
	// already registered.
	ErrEmailExists = errors.New("email already registered")
	// ErrAccountNotFound is returned by stores when no account matches.
	// Credential flows never surface it to callers; they map it to
	// ErrInvalidCredentials to prevent account enumeration.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned for a wrong password and for an
	// unknown email alike. The two cases are indistinguishable by design.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is returned while an account is under temporary
	// lockout. It is the only signin failure that is externally distinct.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountUnverified is returned when signin requires a verified
	// email and the account has not completed verification.
	ErrAccountUnverified = errors.New("account email not verified")
	// ErrOTPInvalid is returned when a reset code does not match or has
	// expired. The two cases are deliberately not distinguished.
	ErrOTPInvalid = errors.New("invalid or expired otp")
	// ErrPasswordReused is returned when a new password matches one of the
	// retained previous hashes.
	ErrPasswordReused = errors.New("password was used previously")
	// ErrPasswordExpired is returned at signin when the password is older
	// than the configured maximum age. Credentials were otherwise correct.
	ErrPasswordExpired = errors.New("password expired")
	// ErrTOTPRequired is returned when the account has a second factor
	// enabled and no code was presented.
	ErrTOTPRequired = errors.New("totp code required")
	// ErrTOTPInvalid is returned when a presented second-factor code does
	// not verify.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotProvisioned is returned when activating or disabling a
	// second factor on an account that has no pending secret.
	ErrTOTPNotProvisioned = errors.New("totp not provisioned")
	// ErrUnauthenticated is returned when a token is missing, malformed,
	// expired, or its session no longer exists. Uniform by design.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when an authenticated caller lacks the
	// privilege for the requested operation.
	ErrForbidden = errors.New("forbidden")
	// ErrMailDelivery is returned when outbound mail fails after the
	// associated state change already committed. Callers must not treat it
	// as a rollback.
	ErrMailDelivery = errors.New("mail delivery failed")
	// ErrStoreUnavailable wraps transient credential-store failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrSessionUnavailable wraps transient session-backend failures.
	ErrSessionUnavailable = errors.New("session backend unavailable")
	// ErrResetRateLimited is returned when reset-code requests for an
	// address exceed the issue budget inside the cooldown window.
	ErrResetRateLimited = errors.New("password reset rate limited")
	// ErrSignInRateLimited is returned when signin attempts from one client
	// IP exceed the configured window budget. Requires an IP on the context.
	ErrSignInRateLimited = errors.New("signin rate limited")
)
