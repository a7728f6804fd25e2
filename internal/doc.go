// Package internal contains helpers private to authcore: random identifiers,
// CSRF tokens, CSP nonces and token hashing.
//
// # Sub-packages
//
//   - rate: fixed-window login and refresh throttles on the key-value store
//   - logger: zap logger construction from daemon options
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Perform I/O beyond reading from crypto/rand.
package internal
