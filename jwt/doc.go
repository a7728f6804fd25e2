// Package jwt issues and verifies the compact signed tokens used for access and
// refresh credentials.
//
// # Token format
//
// Three-part JWS with claims {sub, type, iat, exp, jti} and, for access tokens,
// the denormalized display claims username and email. EdDSA is the default
// algorithm; RS256 is accepted for deployments that already hold RSA key files.
//
// # Architecture boundaries
//
// The [Codec] is pure computation apart from key loading through a [KeySource].
// It knows nothing about storage, revocation or identities.
//
// # What this package must NOT do
//
//   - Access Redis or any user store.
//   - Decide whether a well-formed, unexpired token is still wanted; that is the
//     refresh store's and the ledger's job.
package jwt
