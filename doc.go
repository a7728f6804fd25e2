// Package authcore is the authentication and session-lifecycle core of the
// nutrition-tracker backend: password login, Ed25519 (or RS256) access and
// refresh tokens, refresh rotation with a per-identity cap and a revocation
// ledger, browser sessions carrying the CSRF token, and password changes
// that end every other device's session.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types ([Identity], [TokenPair], [MetricsSnapshot]). Token
// encoding lives in jwt, refresh bookkeeping in refresh, browser sessions in
// session, the CSRF check in csrf, and the Redis access in kv. HTTP status
// codes are assigned only by middleware and httpapi.
//
// # What this package must NOT do
//
//   - Translate errors into HTTP statuses; callers use errors.Is on the
//     exported sentinels.
//   - Hold package-level clients. Redis and the user store are injected
//     through the [Builder].
//   - Log token material, password hashes or raw refresh tokens.
//
// # Hot path
//
// ResolveFromAccessToken runs on every authenticated request: one signature
// check plus one user lookup, no key-value round trip.
package authcore
