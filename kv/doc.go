// Package kv defines the key-value contract the authentication core depends on
// and its Redis implementation.
//
// # Architecture boundaries
//
// The refresh-token store, revocation ledger, session store and login throttle
// only speak [Store]. Key shapes and TTLs belong to those packages; this package
// owns connection handling, per-operation timeouts and error classification.
//
// # What this package must NOT do
//
//   - Interpret keys or values.
//   - Retry failed operations. Every backing failure surfaces as [ErrUnavailable].
package kv
