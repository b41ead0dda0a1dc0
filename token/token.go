// Package token mints and verifies the signed access tokens issued at
// signin. Tokens are self-contained JWTs carrying identity and role claims
// plus the session identifier that anchors them to a server-side record.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// ErrInvalidToken is returned for any token that fails verification.
// Missing, malformed, mis-signed, and expired tokens are all folded into
// this one error so callers cannot tell them apart.
var ErrInvalidToken = errors.New("invalid token")

// Config controls issuance and verification.
type Config struct {
	TTL    time.Duration
	Method SigningMethod
	// PrivateKey is the HMAC secret for hs256 or the ed25519 private key
	// (raw or PEM) for ed25519.
	PrivateKey []byte
	// PublicKey is required for ed25519 verification; unused for hs256.
	PublicKey []byte
	Issuer    string
	// Now overrides the verification clock. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the payload carried by an access token. The account identifier
// rides in the registered Subject claim.
type Claims struct {
	Email     string `json:"email"`
	Role      int    `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues and verifies tokens under a fixed configuration.
// Safe for concurrent use.
type Manager struct {
	cfg    Config
	method jwt.SigningMethod
	sign   any
	verify any
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{cfg: cfg}
	switch cfg.Method {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires a secret")
		}
		m.method = jwt.SigningMethodHS256
		m.sign = cfg.PrivateKey
		m.verify = cfg.PrivateKey
	case MethodEd25519:
		priv, err := edPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := edPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.method = jwt.SigningMethodEdDSA
		m.sign = priv
		m.verify = pub
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Method)
	}

	return m, nil
}

// Issue mints a token for the account at now. The returned expiry is
// now + TTL.
func (m *Manager) Issue(accountID, email string, role int, sessionID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.cfg.TTL)
	claims := Claims{
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.sign)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates raw, returning its claims. Signature, expiry,
// algorithm, and issuer are all checked; every failure maps to
// ErrInvalidToken.
func (m *Manager) Verify(raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.cfg.Now),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}

	var claims Claims
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.verify, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func edPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return priv, nil
}

func edPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return pub, nil
}
