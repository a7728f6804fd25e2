// Package middleware adapts the authcore engine to net/http.
//
// # Chain
//
//   - [ClientInfo] records IP and User-Agent for throttling and audit.
//   - [CSP] sets a nonce-bearing Content-Security-Policy.
//   - [Session] loads the browser session and its CSRF token.
//   - [CSRF] rejects state-changing requests without a matching token.
//   - [RequireAuth] resolves the access token and stores the identity.
//
// # Architecture boundaries
//
// This package is the only place, together with httpapi, where engine errors
// become HTTP status codes ([StatusFor]). Authentication decisions stay in
// the engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Echo internal error text to clients.
package middleware
