// Package password implements password hashing and verification with
// Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads its parameters back out of the encoded hash, so a
// [Hasher] configured with new parameters still verifies hashes produced
// under old ones. [Hasher.NeedsRehash] reports when a stored hash is due
// for an upgrade on the next successful verification.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy
// (strength, reuse history, age) is enforced by the policy package and
// the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authgate package.
//   - Log plaintext passwords.
package password
