// Package authgate is an authentication and credential-lifecycle engine:
// signup, signin with brute-force lockout, password history and expiry,
// OTP-based password reset, optional TOTP second factor, token and session
// issuance, and role-based authorization.
//
// Construct an [Engine] with [New]:
//
//	engine, err := authgate.New().
//		WithConfig(cfg).
//		WithStore(store).
//		WithRedis(redisClient).
//		WithMailer(mailer).
//		Build()
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] and [Mailer] ports, and value types (Claims,
// SignInResult, AccountSummary, etc.). Hashing, token signing, session
// persistence, and policy checks live in sub-packages; reset throttling
// lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store handles, or hash encodings in its public API.
//   - Return different errors for an unknown email and a wrong password.
//   - Perform I/O during construction (Builder is allocation-only until Build).
package authgate
