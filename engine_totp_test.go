package authgate_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/seralith/authgate"
)

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func (env *testEnv) enableTOTP(t *testing.T, accountID string) string {
	t.Helper()
	ctx := context.Background()

	provision, err := env.engine.ProvisionTOTP(ctx, accountID)
	if err != nil {
		t.Fatalf("ProvisionTOTP: %v", err)
	}
	code := totpCode(t, provision.Secret, env.clock.Now())
	if err := env.engine.ActivateTOTP(ctx, accountID, code); err != nil {
		t.Fatalf("ActivateTOTP: %v", err)
	}
	return provision.Secret
}

func TestProvisionTOTP(t *testing.T) {
	env := newTestEngine(t)
	result := env.signUp(t, "a@x.com", strongPassword)

	provision, err := env.engine.ProvisionTOTP(context.Background(), result.AccountID)
	if err != nil {
		t.Fatalf("ProvisionTOTP: %v", err)
	}
	if provision.Secret == "" {
		t.Fatal("empty secret")
	}
	if !strings.HasPrefix(provision.URI, "otpauth://totp/") {
		t.Fatalf("URI = %q", provision.URI)
	}

	// Pending secret does not yet gate signin.
	env.signIn(t, "a@x.com", strongPassword)
}

func TestActivateTOTP(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	result := env.signUp(t, "a@x.com", strongPassword)

	provision, err := env.engine.ProvisionTOTP(ctx, result.AccountID)
	if err != nil {
		t.Fatalf("ProvisionTOTP: %v", err)
	}

	if err := env.engine.ActivateTOTP(ctx, result.AccountID, "000000"); !errors.Is(err, authgate.ErrTOTPInvalid) {
		t.Fatalf("got %v, want ErrTOTPInvalid for a wrong code", err)
	}

	code := totpCode(t, provision.Secret, env.clock.Now())
	if err := env.engine.ActivateTOTP(ctx, result.AccountID, code); err != nil {
		t.Fatalf("ActivateTOTP: %v", err)
	}
	if !env.account(t, "a@x.com").TOTPEnabled {
		t.Fatal("factor not enabled")
	}
}

func TestActivateTOTPWithoutProvision(t *testing.T) {
	env := newTestEngine(t)
	result := env.signUp(t, "a@x.com", strongPassword)

	err := env.engine.ActivateTOTP(context.Background(), result.AccountID, "123456")
	if !errors.Is(err, authgate.ErrTOTPNotProvisioned) {
		t.Fatalf("got %v, want ErrTOTPNotProvisioned", err)
	}
}

func TestSignInWithTOTP(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	result := env.signUp(t, "a@x.com", strongPassword)
	secret := env.enableTOTP(t, result.AccountID)

	// No code presented.
	_, err := env.engine.SignIn(ctx, authgate.SignInInput{Email: "a@x.com", Password: strongPassword})
	if !errors.Is(err, authgate.ErrTOTPRequired) {
		t.Fatalf("got %v, want ErrTOTPRequired", err)
	}

	// Wrong code counts as a failed attempt.
	_, err = env.engine.SignIn(ctx, authgate.SignInInput{
		Email:    "a@x.com",
		Password: strongPassword,
		TOTPCode: "000000",
	})
	if !errors.Is(err, authgate.ErrTOTPInvalid) {
		t.Fatalf("got %v, want ErrTOTPInvalid", err)
	}
	if got := env.account(t, "a@x.com").FailedLoginAttempts; got != 1 {
		t.Fatalf("counter = %d, want 1 after a bad second factor", got)
	}

	// Valid code passes.
	signin, err := env.engine.SignIn(ctx, authgate.SignInInput{
		Email:    "a@x.com",
		Password: strongPassword,
		TOTPCode: totpCode(t, secret, env.clock.Now()),
	})
	if err != nil {
		t.Fatalf("SignIn with code: %v", err)
	}
	if signin.Token == "" {
		t.Fatal("empty token")
	}
}

func TestSignInTOTPSkew(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	result := env.signUp(t, "a@x.com", strongPassword)
	secret := env.enableTOTP(t, result.AccountID)

	// A code from the previous step stays inside the +-1 step tolerance.
	_, err := env.engine.SignIn(ctx, authgate.SignInInput{
		Email:    "a@x.com",
		Password: strongPassword,
		TOTPCode: totpCode(t, secret, env.clock.Now().Add(-30*time.Second)),
	})
	if err != nil {
		t.Fatalf("previous-step code rejected: %v", err)
	}

	// Two minutes out is beyond the tolerance.
	_, err = env.engine.SignIn(ctx, authgate.SignInInput{
		Email:    "a@x.com",
		Password: strongPassword,
		TOTPCode: totpCode(t, secret, env.clock.Now().Add(-2*time.Minute)),
	})
	if !errors.Is(err, authgate.ErrTOTPInvalid) {
		t.Fatalf("got %v, want ErrTOTPInvalid for a stale code", err)
	}
}

func TestDisableTOTP(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	result := env.signUp(t, "a@x.com", strongPassword)
	env.enableTOTP(t, result.AccountID)

	// Wrong password cannot strip the factor.
	err := env.engine.DisableTOTP(ctx, result.AccountID, "WrongPassword1!")
	if !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}

	if err := env.engine.DisableTOTP(ctx, result.AccountID, strongPassword); err != nil {
		t.Fatalf("DisableTOTP: %v", err)
	}

	account := env.account(t, "a@x.com")
	if account.TOTPEnabled || account.TOTPSecret != "" {
		t.Fatalf("factor not fully removed: %+v", account)
	}

	// Signin no longer asks for a code.
	env.signIn(t, "a@x.com", strongPassword)
}

func TestProvisionTOTPWhileActive(t *testing.T) {
	env := newTestEngine(t)
	result := env.signUp(t, "a@x.com", strongPassword)
	env.enableTOTP(t, result.AccountID)

	_, err := env.engine.ProvisionTOTP(context.Background(), result.AccountID)
	if !errors.Is(err, authgate.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation while a factor is active", err)
	}
}
