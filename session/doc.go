// Package session provides Redis-backed persistence for the server-side
// session records that anchor access tokens.
//
// A token is only as alive as its record: deleting the record revokes the
// token immediately, before its natural expiry. Records carry their own
// logical expiry alongside the Redis TTL, so a clock injected for tests
// can expire sessions without waiting on Redis.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session]
// model. It does not interpret tokens or decide who may sign in; those
// responsibilities belong to the Engine and the token package.
//
// # What this package must NOT do
//
//   - Import authgate or token (no upward imports).
//   - Store credentials or password material in [Session] fields.
package session
