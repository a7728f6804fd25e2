package internaldefs

import (
	"github.com/nutritrack/authcore"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed logins."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins refused by the throttle."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcore.MetricRefreshRateLimited, Name: "authcore_refresh_rate_limited_total", Help: "Refreshes refused by the throttle."},
	{ID: authcore.MetricRefreshRevokedReplay, Name: "authcore_refresh_revoked_replay_total", Help: "Presentations of a blacklisted refresh token."},
	{ID: authcore.MetricAccessResolveFailure, Name: "authcore_access_resolve_failure_total", Help: "Access tokens that did not resolve to an identity."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-device logouts."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logouts from every device."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Failed password changes."},
	{ID: authcore.MetricPasswordHashUpgraded, Name: "authcore_password_hash_upgraded_total", Help: "Legacy hashes rewritten as Argon2id on login."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Created accounts."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations refused for a taken username or email."},
	{ID: authcore.MetricRegisterRejected, Name: "authcore_register_rejected_total", Help: "Registrations refused for invalid input."},
	{ID: authcore.MetricCSRFRejected, Name: "authcore_csrf_rejected_total", Help: "Requests refused by the CSRF guard."},
	{ID: authcore.MetricStoreUnavailable, Name: "authcore_store_unavailable_total", Help: "Operations that failed because a backing store was unreachable."},
	{ID: authcore.MetricCSPViolationReported, Name: "authcore_csp_violation_reported_total", Help: "Browser CSP violation reports."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricResolveLatency, Name: "authcore_resolve_latency_seconds", Help: "Access token resolution latency."},
}

// HistogramBounds are authcore.LatencyBuckets in seconds. The +Inf bucket
// is implicit.
var HistogramBounds = func() []float64 {
	out := make([]float64, len(authcore.LatencyBuckets))
	for i, d := range authcore.LatencyBuckets {
		out[i] = d.Seconds()
	}
	return out
}()

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// emit one gauge per bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const AuditDroppedName = "authcore_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// NormalizeBuckets copies raw into a fixed array, zero-padding short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
