package authgate

import (
	"context"
	"errors"
)

// RequireSelf authorizes an operation on the target account. The caller
// passes unless they are acting on someone else's account without holding
// the admin role in the store.
func (e *Engine) RequireSelf(ctx context.Context, claims Claims, targetAccountID string) error {
	if claims.AccountID == "" {
		return ErrUnauthenticated
	}
	if claims.AccountID == targetAccountID {
		return nil
	}
	return e.RequireAdmin(ctx, claims)
}

// RequireAdmin authorizes an admin-only operation. The stored role is
// re-read on every call: a role claim embedded in a still-valid token does
// not survive revocation.
func (e *Engine) RequireAdmin(ctx context.Context, claims Claims) error {
	if claims.AccountID == "" {
		return ErrUnauthenticated
	}

	account, err := e.store.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return e.denyAdmin(ctx, claims, "account gone")
		}
		return err
	}
	if account.Role != RoleAdmin {
		return e.denyAdmin(ctx, claims, "not admin")
	}
	return nil
}

func (e *Engine) denyAdmin(ctx context.Context, claims Claims, reason string) error {
	e.metricInc(MetricAdminDenied)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventAdminDenied,
		AccountID: claims.AccountID,
		Email:     claims.Email,
		Error:     reason,
	})
	return ErrForbidden
}

// IsAdmin reports the stored role for an account.
func (e *Engine) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	return account.Role == RoleAdmin, nil
}

// ListAccounts returns the redacted account roster. Admin only.
func (e *Engine) ListAccounts(ctx context.Context, claims Claims) ([]AccountSummary, error) {
	if err := e.RequireAdmin(ctx, claims); err != nil {
		return nil, err
	}

	accounts, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountSummary{
			ID:        a.ID,
			Name:      a.Name,
			Email:     a.Email,
			Role:      a.Role,
			Verified:  a.Verified,
			Locked:    a.Locked(now),
			CreatedAt: a.CreatedAt,
		})
	}

	e.LogAdminAction(ctx, claims.AccountID, "list_accounts", "")
	return out, nil
}

// UnlockAccount clears a lockout ahead of its natural expiry. Admin only.
func (e *Engine) UnlockAccount(ctx context.Context, claims Claims, targetAccountID string) error {
	if err := e.RequireAdmin(ctx, claims); err != nil {
		return err
	}

	if err := e.store.ClearLockout(ctx, targetAccountID); err != nil {
		return err
	}

	e.LogAdminAction(ctx, claims.AccountID, "unlock_account", targetAccountID)
	return nil
}

// LogAdminAction records an administrative action on the audit stream.
// Fire-and-forget: the outcome of the sink never reaches the caller.
func (e *Engine) LogAdminAction(ctx context.Context, adminID, action, target string) {
	event := AuditEvent{
		EventType: auditEventAdminAction,
		AccountID: adminID,
		Success:   true,
		Metadata:  map[string]string{"action": action},
	}
	if target != "" {
		event.Metadata["target"] = target
	}
	e.emitAudit(ctx, event)
}
