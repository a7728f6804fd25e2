// Package session persists per-browser sessions that carry the CSRF token.
//
// # Encoding
//
// Records are msgpack maps {v, id, csrf_token, created_at} stored under
// session:{id}. The v field is the schema version; unknown versions decode as
// an error and the caller starts a fresh session.
//
// # Lifetime
//
// A session exists independently of login state. Each [Store.Persist] slides
// the TTL forward. [Store.Regenerate] swaps the id on login and keeps the
// CSRF token so open forms remain valid.
//
// # What this package must NOT do
//
//   - Hold identity, tokens or any other credential besides the CSRF token.
//   - Import authcore, jwt or refresh.
package session
