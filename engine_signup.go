package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/seralith/authgate/policy"
)

const (
	minNameLength = 3
	maxNameLength = 25

	// verificationSessionID marks a token as an email-verification token
	// so an access token can never pass for one.
	verificationSessionID = "email-verification"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignUp creates an account. The password must satisfy the strength
// policy; the email must not be registered. New accounts always start as
// RoleUser with the password itself as the only history entry. When email
// verification is enabled, a signed verification link goes out by mail;
// a delivery failure surfaces as ErrMailDelivery with the account already
// created.
func (e *Engine) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	if err := e.validateSignUp(in); err != nil {
		return SignUpResult{}, err
	}

	email := normalizeEmail(in.Email)
	now := e.now()

	// Fast path only. The store's uniqueness constraint is the real guard;
	// a concurrent signup racing past this check fails at Insert.
	if _, err := e.store.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricSignUpDuplicate)
		return SignUpResult{}, ErrEmailExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return SignUpResult{}, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return SignUpResult{}, err
	}

	account := Account{
		ID:                e.newID(),
		Name:              in.Name,
		Email:             email,
		PasswordHash:      hash,
		PasswordHistory:   []string{hash},
		PasswordChangedAt: now,
		Role:              RoleUser,
		Verified:          !e.config.Verification.Enabled,
		CreatedAt:         now,
	}

	if err := e.store.Insert(ctx, account); err != nil {
		if errors.Is(err, ErrEmailExists) {
			e.metricInc(MetricSignUpDuplicate)
		}
		return SignUpResult{}, err
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventSignUp,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
	})

	result := SignUpResult{AccountID: account.ID, Email: email}

	if e.config.Verification.Enabled {
		if err := e.sendVerificationMail(ctx, account); err != nil {
			e.metricInc(MetricMailFailure)
			log.Printf("authgate: verification mail for %s failed: %v", account.ID, err)
			return result, ErrMailDelivery
		}
	}
	return result, nil
}

// VerifyEmail marks an account verified from a token previously mailed by
// SignUp or ResendVerification.
func (e *Engine) VerifyEmail(ctx context.Context, rawToken string) error {
	if e.verifyTokens == nil {
		return fmt.Errorf("%w: email verification disabled", ErrValidation)
	}

	claims, err := e.verifyTokens.Verify(rawToken)
	if err != nil || claims.SessionID != verificationSessionID {
		return ErrUnauthenticated
	}

	account, err := e.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrUnauthenticated
		}
		return err
	}
	if account.Verified {
		return nil
	}

	account.Verified = true
	if err := e.store.Update(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventVerifyEmail,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})
	return nil
}

// ResendVerification mails a fresh verification link. Unknown addresses
// and already-verified accounts report success without sending anything,
// so the endpoint cannot be used to probe for accounts.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e.verifyTokens == nil {
		return fmt.Errorf("%w: email verification disabled", ErrValidation)
	}

	account, err := e.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if account.Verified {
		return nil
	}

	if err := e.sendVerificationMail(ctx, account); err != nil {
		e.metricInc(MetricMailFailure)
		log.Printf("authgate: verification mail for %s failed: %v", account.ID, err)
		return ErrMailDelivery
	}
	return nil
}

func (e *Engine) sendVerificationMail(ctx context.Context, account Account) error {
	if e.mailer == nil {
		return errors.New("no mailer configured")
	}

	raw, _, err := e.verifyTokens.Issue(account.ID, account.Email, int(account.Role), verificationSessionID, e.now())
	if err != nil {
		return err
	}

	link := raw
	if base := e.config.Verification.LinkBase; base != "" {
		link = base + raw
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nConfirm your email address by opening the link below:\n\n%s\n\nThe link expires in %s.",
		account.Name, link, e.config.Verification.TokenTTL,
	)
	return e.mailer.Send(ctx, account.Email, "Confirm your email address", body)
}

func (e *Engine) validateSignUp(in SignUpInput) error {
	if len(in.Name) < minNameLength || len(in.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrValidation, minNameLength, maxNameLength)
	}
	if !emailPattern.MatchString(normalizeEmail(in.Email)) {
		return fmt.Errorf("%w: malformed email address", ErrValidation)
	}
	return e.checkPasswordStrength(in.Password)
}

func (e *Engine) checkPasswordStrength(candidate string) error {
	err := policy.CheckStrength(candidate, policy.Strength{
		MinLength:        e.config.Password.MinLength,
		RequireUppercase: e.config.Password.RequireUppercase,
		RequireDigit:     e.config.Password.RequireDigit,
		MinScore:         e.config.Password.MinScore,
		PassphraseLength: e.config.Password.PassphraseLength,
	})
	if err != nil {
		// ErrWeakPassword already carries the policy sentinel's phrase;
		// keep only the reason behind it.
		return fmt.Errorf("%w%s", ErrWeakPassword, strings.TrimPrefix(err.Error(), policy.ErrWeak.Error()))
	}
	return nil
}
