package authgate

import (
	"errors"
	"time"
)

// Config is the engine configuration tree. Populate it before Build and
// treat it as immutable afterwards; Build keeps its own copy.
type Config struct {
	Token        TokenConfig
	Session      SessionConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	Reset        ResetConfig
	TOTP         TOTPConfig
	Verification VerificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// TokenConfig controls the signed access token.
type TokenConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

// SessionConfig controls the server-side session records that anchor
// access tokens. Deleting the record invalidates the token immediately.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

// PasswordConfig carries the argon2id cost parameters and the password
// lifecycle policy.
type PasswordConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength        int
	RequireUppercase bool
	RequireDigit     bool
	MinScore         int // zxcvbn score floor, 0-4
	// PassphraseLength is the length at which a password mixing all four
	// character classes satisfies MinScore outright. Zero applies the
	// score floor to every password.
	PassphraseLength int
	HistoryLimit     int
	MaxAge           time.Duration // 0 disables expiry
}

// LockoutConfig controls the brute-force lockout guard. The per-account
// counter always runs; the per-IP throttle only runs when IPMaxAttempts is
// set and the caller attached an IP via [WithClientIP].
type LockoutConfig struct {
	MaxAttempts  int
	LockDuration time.Duration

	// IPMaxAttempts bounds signin attempts per client IP within IPWindow.
	// Zero disables the IP throttle.
	IPMaxAttempts int
	IPWindow      time.Duration
}

// ResetConfig controls the one-time password-reset code.
type ResetConfig struct {
	OTPTTL time.Duration
	// MaxRequests bounds code issuance per address within Cooldown.
	// Zero disables throttling.
	MaxRequests int
	Cooldown    time.Duration
}

// TOTPConfig controls the optional time-based second factor.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	Skew   int
}

// VerificationConfig controls signup email verification.
type VerificationConfig struct {
	Enabled          bool
	TokenTTL         time.Duration
	LinkBase         string // prefix for the mailed verification link
	RequireForSignIn bool
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     30 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authgate",
		},
		Session: SessionConfig{
			RedisPrefix: "ag",
			Lifetime:    24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,

			MinLength:        8,
			RequireUppercase: true,
			RequireDigit:     true,
			MinScore:         3,
			PassphraseLength: 14,
			HistoryLimit:     5,
			MaxAge:           90 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			LockDuration: 15 * time.Minute,
		},
		Reset: ResetConfig{
			OTPTTL:      10 * time.Minute,
			MaxRequests: 3,
			Cooldown:    15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer: "authgate",
			Digits: 6,
			Period: 30,
			Skew:   1,
		},
		Verification: VerificationConfig{
			Enabled:          false,
			TokenTTL:         24 * time.Hour,
			RequireForSignIn: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// DefaultConfig returns the baseline configuration: 30-minute tokens,
// 24-hour sessions, 5-attempt/15-minute lockout, 5-entry password history,
// 90-day password expiry, 10-minute reset codes.
func DefaultConfig() Config {
	return defaultConfig()
}

// Validate checks internal consistency. Build calls it; direct users of
// Config rarely need to.
func (c Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	switch c.Token.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("unsupported token signing method")
	}
	if len(c.Token.PrivateKey) == 0 {
		return errors.New("token private key required")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("password min length must be >= 1")
	}
	if c.Password.MinScore < 0 || c.Password.MinScore > 4 {
		return errors.New("password min score must be within 0-4")
	}
	if c.Password.HistoryLimit < 1 {
		return errors.New("password history limit must be >= 1")
	}
	if c.Password.MaxAge < 0 {
		return errors.New("password max age must not be negative")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be >= 1")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Lockout.IPMaxAttempts > 0 && c.Lockout.IPWindow <= 0 {
		return errors.New("lockout IP window must be positive when the IP throttle is enabled")
	}
	if c.Reset.OTPTTL <= 0 {
		return errors.New("reset OTP TTL must be positive")
	}
	if c.Reset.MaxRequests > 0 && c.Reset.Cooldown <= 0 {
		return errors.New("reset cooldown must be positive when throttling is enabled")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("totp digits must be within 6-8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("totp period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew must be within 0-2")
	}
	if c.Verification.Enabled && c.Verification.TokenTTL <= 0 {
		return errors.New("verification token TTL must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
