package authgate

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ProvisionTOTP generates a second-factor secret for the account and
// stores it pending. The factor is not enforced until the holder proves
// possession through ActivateTOTP. Re-provisioning before activation
// replaces the pending secret; an already-active factor must be disabled
// first.
func (e *Engine) ProvisionTOTP(ctx context.Context, accountID string) (TOTPProvision, error) {
	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		return TOTPProvision{}, err
	}
	if account.TOTPEnabled {
		return TOTPProvision{}, fmt.Errorf("%w: second factor already active", ErrValidation)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.TOTP.Issuer,
		AccountName: account.Email,
		Period:      uint(e.config.TOTP.Period),
		Digits:      otp.Digits(e.config.TOTP.Digits),
	})
	if err != nil {
		return TOTPProvision{}, fmt.Errorf("generate totp secret: %w", err)
	}

	account.TOTPSecret = key.Secret()
	account.TOTPEnabled = false
	if err := e.store.Update(ctx, account); err != nil {
		return TOTPProvision{}, err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventTOTPProvision,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})
	return TOTPProvision{Secret: key.Secret(), URI: key.URL()}, nil
}

// ActivateTOTP turns the pending secret into an enforced second factor
// once the holder presents a valid code from it.
func (e *Engine) ActivateTOTP(ctx context.Context, accountID, code string) error {
	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TOTPSecret == "" {
		return ErrTOTPNotProvisioned
	}
	if account.TOTPEnabled {
		return nil
	}

	if !e.totpCodeValid(account.TOTPSecret, code, e.now()) {
		e.metricInc(MetricTOTPFailure)
		return ErrTOTPInvalid
	}

	account.TOTPEnabled = true
	if err := e.store.Update(ctx, account); err != nil {
		return err
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventTOTPActivate,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})
	return nil
}

// DisableTOTP removes the second factor. The caller must re-prove the
// account password; a stolen session alone cannot strip the factor.
func (e *Engine) DisableTOTP(ctx context.Context, accountID, currentPassword string) error {
	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TOTPSecret == "" && !account.TOTPEnabled {
		return ErrTOTPNotProvisioned
	}

	match, err := e.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}

	account.TOTPEnabled = false
	account.TOTPSecret = ""
	if err := e.store.Update(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventTOTPDisable,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})
	return nil
}

// totpCodeValid checks code against secret at now, tolerating the
// configured step skew.
func (e *Engine) totpCodeValid(secret, code string, now time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    uint(e.config.TOTP.Period),
		Skew:      uint(e.config.TOTP.Skew),
		Digits:    otp.Digits(e.config.TOTP.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}
