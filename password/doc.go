// Package password hashes and verifies user passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// older deployments. [Argon2.NeedsUpgrade] reports true for those, and for
// Argon2id hashes made with weaker parameters, so the caller can re-hash on
// the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Log plaintext passwords.
package password
