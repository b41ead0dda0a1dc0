package authgate

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/seralith/authgate/policy"
)

// ChangePassword replaces the account password after re-proving the
// current one. The new password must satisfy the strength policy and must
// not match any of the retained previous hashes. On success every live
// session for the account is revoked; the caller signs in again.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	match, err := e.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}

	if err := e.applyNewPassword(ctx, &account, newPassword); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventPasswordChange,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})
	return nil
}

// applyNewPassword runs the shared tail of every password change: policy
// checks, history maintenance, persistence, and session revocation. The
// caller has already proven the right to change the password.
func (e *Engine) applyNewPassword(ctx context.Context, account *Account, newPassword string) error {
	if err := e.checkPasswordStrength(newPassword); err != nil {
		return err
	}

	err := policy.CheckReuse(newPassword, account.PasswordHistory, e.config.Password.HistoryLimit, e.hasher.Verify)
	if err != nil {
		if errors.Is(err, policy.ErrReused) {
			e.metricInc(MetricPasswordReuseRejected)
			return ErrPasswordReused
		}
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = hash
	account.PasswordHistory = pushHistory(account.PasswordHistory, hash, e.config.Password.HistoryLimit)
	account.PasswordChangedAt = e.now()
	account.FailedLoginAttempts = 0
	account.LockedUntil = time.Time{}

	if err := e.store.Update(ctx, *account); err != nil {
		return err
	}

	// Revoke every session issued under the old password. Best effort: a
	// session backend outage must not undo the committed change.
	if err := e.sessions.DeleteAllForAccount(ctx, account.ID); err != nil {
		log.Printf("authgate: revoking sessions for %s failed: %v", account.ID, err)
	}
	return nil
}

// pushHistory prepends hash and trims to limit. The newest hash is always
// index 0.
func pushHistory(history []string, hash string, limit int) []string {
	out := make([]string, 0, len(history)+1)
	out = append(out, hash)
	out = append(out, history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
