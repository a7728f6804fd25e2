// Package csrf rejects state-changing requests that do not prove they came
// from a page the server rendered for the same browser session.
//
// The [Guard] runs after the session middleware and reads the session from
// the request context. A request passes when it uses a safe method, targets
// an exempt path, or carries an allowed Origin together with a client token
// equal to the session-bound token (and to the csrf_token cookie, when one
// is sent).
package csrf
