// Package rate provides the fixed-window login and refresh throttles.
//
// # Window semantics
//
// INCR with EXPIRE on the first hit of a window. Key prefixes:
//   - rl:login:user: failed logins per username (hashed)
//   - rl:login:ip:   failed logins per client IP
//   - rl:refresh:    refresh calls per identity
//
// Counters live in the shared key-value store so every replica sees the same
// budget.
//
// # What this package must NOT do
//
//   - Decide how a rate-limited request is reported to the client.
//   - Be imported outside the authcore module.
package rate
