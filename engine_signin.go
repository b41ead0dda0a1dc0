package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"

	internalrate "github.com/seralith/authgate/internal/rate"
	"github.com/seralith/authgate/policy"
	"github.com/seralith/authgate/session"
)

// SignIn verifies credentials and, on success, opens a session and mints
// an access token bound to it.
//
// Failure order is fixed: an active lockout short-circuits before any hash
// comparison, an unknown email costs a hash verification against a decoy,
// and both report ErrInvalidCredentials. The failed attempt that reaches
// the lockout threshold still reports ErrInvalidCredentials; only
// subsequent attempts see ErrAccountLocked. A correct password that has
// outlived its maximum age reports ErrPasswordExpired without touching the
// failure counter. A wrong second-factor code reports ErrTOTPInvalid and
// still counts toward the lockout.
//
// When the per-IP throttle is configured and the caller attached an IP
// via [WithClientIP], over-budget attempts report ErrSignInRateLimited
// before any account state is touched.
func (e *Engine) SignIn(ctx context.Context, in SignInInput) (SignInResult, error) {
	if in.Email == "" || in.Password == "" {
		return SignInResult{}, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	if ip := clientIPFromContext(ctx); ip != "" {
		if err := e.signinLimiter.Hit(ctx, ip); err != nil {
			if errors.Is(err, internalrate.ErrLimited) {
				e.metricInc(MetricSignInThrottled)
				e.emitAudit(ctx, AuditEvent{EventType: auditEventSignIn, Email: normalizeEmail(in.Email), Error: "ip throttled"})
				return SignInResult{}, ErrSignInRateLimited
			}
			return SignInResult{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
	}

	email := normalizeEmail(in.Email)
	now := e.now()

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Burn the same work as a real comparison so response timing
			// does not separate unknown addresses from wrong passwords.
			_, _ = e.hasher.Verify(in.Password, e.decoyHash)
			e.metricInc(MetricSignInFailure)
			e.emitAudit(ctx, AuditEvent{EventType: auditEventSignIn, Email: email, Error: "unknown email"})
			return SignInResult{}, ErrInvalidCredentials
		}
		return SignInResult{}, err
	}

	if account.Locked(now) {
		e.metricInc(MetricSignInLocked)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventSignInLocked,
			AccountID: account.ID,
			Email:     email,
		})
		return SignInResult{}, ErrAccountLocked
	}

	match, err := e.hasher.Verify(in.Password, account.PasswordHash)
	if err != nil {
		return SignInResult{}, err
	}
	if !match {
		e.recordSignInFailure(ctx, account, "wrong password")
		return SignInResult{}, ErrInvalidCredentials
	}

	if policy.Expired(account.PasswordChangedAt, e.config.Password.MaxAge, now) {
		e.metricInc(MetricPasswordExpired)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventSignIn,
			AccountID: account.ID,
			Email:     email,
			Error:     "password expired",
		})
		return SignInResult{}, ErrPasswordExpired
	}

	if e.config.Verification.Enabled && e.config.Verification.RequireForSignIn && !account.Verified {
		return SignInResult{}, ErrAccountUnverified
	}

	if account.TOTPEnabled {
		if in.TOTPCode == "" {
			return SignInResult{}, ErrTOTPRequired
		}
		if !e.totpCodeValid(account.TOTPSecret, in.TOTPCode, now) {
			e.metricInc(MetricTOTPFailure)
			e.recordSignInFailure(ctx, account, "invalid totp")
			return SignInResult{}, ErrTOTPInvalid
		}
		e.metricInc(MetricTOTPSuccess)
	}

	if account.FailedLoginAttempts > 0 || !account.LockedUntil.IsZero() {
		if err := e.store.ClearLockout(ctx, account.ID); err != nil {
			return SignInResult{}, err
		}
	}

	sid := e.newSessionID()
	expiresAt := now.Add(e.config.Session.Lifetime)
	err = e.sessions.Save(ctx, session.Session{
		ID:        sid,
		AccountID: account.ID,
		Email:     account.Email,
		Role:      int(account.Role),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return SignInResult{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	raw, tokenExpiry, err := e.tokens.Issue(account.ID, account.Email, int(account.Role), sid, now)
	if err != nil {
		return SignInResult{}, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventSignIn,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})

	return SignInResult{
		Token:     raw,
		SessionID: sid,
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		ExpiresAt: tokenExpiry,
	}, nil
}

// recordSignInFailure bumps the failure counter atomically at the store.
// The attempt that crosses the threshold locks the account; the caller
// still reports its own failure sentinel.
func (e *Engine) recordSignInFailure(ctx context.Context, account Account, reason string) {
	updated, err := e.store.RecordLoginFailure(
		ctx,
		account.ID,
		e.config.Lockout.MaxAttempts,
		e.config.Lockout.LockDuration,
		e.now(),
	)
	if err != nil {
		// The counter update failing must not mask the credential failure.
		log.Printf("authgate: recording login failure for %s failed: %v", account.ID, err)
	} else if updated.FailedLoginAttempts == e.config.Lockout.MaxAttempts {
		e.metricInc(MetricLockoutTriggered)
	}

	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventSignIn,
		AccountID: account.ID,
		Email:     account.Email,
		Error:     reason,
	})
}

// Authenticate resolves a bearer token to verified claims. The token
// signature and expiry are checked first, then the session record it
// names must still exist. Every failure is ErrUnauthenticated; only a
// session-backend outage is reported distinctly.
func (e *Engine) Authenticate(ctx context.Context, rawToken string) (Claims, error) {
	tc, err := e.tokens.Verify(rawToken)
	if err != nil {
		return Claims{}, ErrUnauthenticated
	}

	sess, err := e.sessions.Get(ctx, tc.SessionID, e.now())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Claims{}, ErrUnauthenticated
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if sess.AccountID != tc.Subject {
		return Claims{}, ErrUnauthenticated
	}

	return Claims{
		AccountID: tc.Subject,
		Email:     tc.Email,
		Role:      Role(tc.Role),
		SessionID: tc.SessionID,
	}, nil
}

// SignOut deletes the session behind the token, revoking it immediately.
// An already-invalid token is not an error.
func (e *Engine) SignOut(ctx context.Context, rawToken string) error {
	claims, err := e.Authenticate(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil
		}
		return err
	}

	if err := e.sessions.Delete(ctx, claims.SessionID, claims.AccountID); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventSignOut,
		AccountID: claims.AccountID,
		Email:     claims.Email,
		Success:   true,
	})
	return nil
}
