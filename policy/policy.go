// Package policy holds the pure password-lifecycle checks: strength,
// history reuse, and age. Nothing here touches storage; callers persist
// the outcome.
package policy

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

var (
	// ErrWeak is returned when a password fails the strength rules.
	ErrWeak = errors.New("password too weak")
	// ErrReused is returned when a password matches a retained hash.
	ErrReused = errors.New("password reused")
)

// Strength are the composition and entropy requirements for a new password.
type Strength struct {
	MinLength        int
	RequireUppercase bool
	RequireDigit     bool
	// MinScore is the zxcvbn score floor, 0 (guessable) to 4 (strong).
	MinScore int
	// PassphraseLength is the length at which a password mixing upper
	// case, lower case, digits, and symbols satisfies the score floor
	// without consulting the estimator. Zero means the floor always
	// applies.
	PassphraseLength int
}

// CheckStrength validates password against s. Composition rules run before
// the entropy estimate so the cheap failures report first.
func CheckStrength(password string, s Strength) error {
	if len(password) < s.MinLength {
		return fmt.Errorf("%w: shorter than %d characters", ErrWeak, s.MinLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if s.RequireUppercase && !hasUpper {
		return fmt.Errorf("%w: missing uppercase letter", ErrWeak)
	}
	if s.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: missing digit", ErrWeak)
	}

	if s.MinScore > 0 {
		// The estimator scores leet-speak over dictionary words near zero
		// regardless of length, so long all-class passwords clear the
		// floor on composition alone.
		if s.PassphraseLength > 0 && len(password) >= s.PassphraseLength &&
			hasUpper && hasLower && hasDigit && hasSymbol {
			return nil
		}
		if score := zxcvbn.PasswordStrength(password, nil).Score; score < s.MinScore {
			return fmt.Errorf("%w: strength score %d below %d", ErrWeak, score, s.MinScore)
		}
	}
	return nil
}

// VerifyFunc compares a plaintext password against one encoded hash.
type VerifyFunc func(password, encoded string) (bool, error)

// CheckReuse compares password against the newest limit entries of history
// and returns ErrReused on any match. Hashes that fail to parse are skipped;
// a stale or corrupt history entry must not block a password change.
func CheckReuse(password string, history []string, limit int, verify VerifyFunc) error {
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	for _, encoded := range history {
		match, err := verify(password, encoded)
		if err != nil {
			continue
		}
		if match {
			return ErrReused
		}
	}
	return nil
}

// Expired reports whether a password last changed at changedAt has exceeded
// maxAge. A zero maxAge disables expiry; a zero changedAt never expires
// (the account predates age tracking).
func Expired(changedAt time.Time, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 || changedAt.IsZero() {
		return false
	}
	return now.Sub(changedAt) >= maxAge
}
