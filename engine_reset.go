package authgate

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	internalrate "github.com/seralith/authgate/internal/rate"
)

// otpSpan draws codes from [10000, 99999]: five digits, never a leading
// zero, wide enough that guessing inside the expiry window is hopeless
// with the request throttle in front.
const (
	otpFloor = 10000
	otpSpan  = 90000
)

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpFloor), nil
}

// RequestPasswordReset issues a one-time reset code and mails it. The
// response is uniform for known and unknown addresses; only throttling is
// observable. A new request overwrites any earlier outstanding code. If
// the mail transport fails after the code is stored, the stored code stays
// valid and the failure surfaces as ErrMailDelivery.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: malformed email address", ErrValidation)
	}

	if err := e.resetLimiter.Hit(ctx, email); err != nil {
		if errors.Is(err, internalrate.ErrLimited) {
			e.metricInc(MetricResetRateLimited)
			return ErrResetRateLimited
		}
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Same outcome as the known-address path.
			return nil
		}
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return err
	}

	account.OTPCode = code
	account.OTPExpiresAt = e.now().Add(e.config.Reset.OTPTTL)
	if err := e.store.Update(ctx, account); err != nil {
		return err
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventResetRequest,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
	})

	if e.mailer == nil {
		return ErrMailDelivery
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nYour password reset code is: %s\n\nIt expires in %s. If you did not request a reset, ignore this message.",
		account.Name, code, e.config.Reset.OTPTTL,
	)
	if err := e.mailer.Send(ctx, email, "Your password reset code", body); err != nil {
		e.metricInc(MetricMailFailure)
		log.Printf("authgate: reset mail for %s failed: %v", account.ID, err)
		return ErrMailDelivery
	}
	return nil
}

// VerifyResetOTP checks a presented code without consuming it, so a client
// can validate the code before collecting the new password. Unknown
// addresses report ErrOTPInvalid like any bad code.
func (e *Engine) VerifyResetOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	if !e.resetCodeValid(account, code) {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventOTPVerify,
			AccountID: account.ID,
			Email:     email,
			Error:     "invalid or expired code",
		})
		return ErrOTPInvalid
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventOTPVerify,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
	})
	return nil
}

// ResetPassword completes the reset flow: the code is checked and
// consumed, the new password passes strength and reuse policy, the
// lockout state clears, and every live session is revoked.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	if !e.resetCodeValid(account, code) {
		e.metricInc(MetricResetFailure)
		return ErrOTPInvalid
	}

	account.OTPCode = ""
	account.OTPExpiresAt = time.Time{}

	if err := e.applyNewPassword(ctx, &account, newPassword); err != nil {
		return err
	}

	if err := e.resetLimiter.Reset(ctx, email); err != nil {
		log.Printf("authgate: clearing reset throttle for %s failed: %v", account.ID, err)
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventResetComplete,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
	})
	return nil
}

// resetCodeValid reports whether the presented code matches the
// outstanding challenge and the challenge is still live. The comparison
// is constant-time; match and expiry failures are indistinguishable to
// the caller.
func (e *Engine) resetCodeValid(account Account, code string) bool {
	if account.OTPCode == "" || code == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(account.OTPCode), []byte(code)) != 1 {
		return false
	}
	return !e.now().After(account.OTPExpiresAt)
}
