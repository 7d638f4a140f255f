package internaldefs

import "github.com/MrEthical07/memoauth"

// CounterDef names one memoauth counter for exporters.
type CounterDef struct {
	ID   memoauth.MetricID
	Name string
	Help string
}

// HistogramDef names one memoauth latency histogram for exporters.
type HistogramDef struct {
	ID   memoauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: memoauth.MetricSignupSuccess, Name: "memoauth_signup_success_total", Help: "Accounts created."},
	{ID: memoauth.MetricSignupDuplicate, Name: "memoauth_signup_duplicate_total", Help: "Signups rejected because the email exists."},
	{ID: memoauth.MetricSignupRejected, Name: "memoauth_signup_rejected_total", Help: "Signups rejected by input validation."},
	{ID: memoauth.MetricLoginSuccess, Name: "memoauth_login_success_total", Help: "Successful logins."},
	{ID: memoauth.MetricLoginFailure, Name: "memoauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: memoauth.MetricReissueSuccess, Name: "memoauth_reissue_success_total", Help: "Refresh token rotations."},
	{ID: memoauth.MetricReissueFailure, Name: "memoauth_reissue_failure_total", Help: "Reissues rejected for unknown subject, missing or invalid token."},
	{ID: memoauth.MetricReissueMismatch, Name: "memoauth_reissue_mismatch_total", Help: "Reissues presenting a superseded refresh token."},
	{ID: memoauth.MetricLogout, Name: "memoauth_logout_total", Help: "Sessions ended by logout."},
	{ID: memoauth.MetricLogoutNotFound, Name: "memoauth_logout_not_found_total", Help: "Logouts with no live session."},
	{ID: memoauth.MetricTokenBlacklisted, Name: "memoauth_token_blacklisted_total", Help: "Requests presenting a blacklisted access token."},
	{ID: memoauth.MetricAuthenticateSuccess, Name: "memoauth_authenticate_success_total", Help: "Bearer tokens accepted."},
	{ID: memoauth.MetricAuthenticateFailure, Name: "memoauth_authenticate_failure_total", Help: "Bearer tokens rejected."},
	{ID: memoauth.MetricStoreUnavailable, Name: "memoauth_store_unavailable_total", Help: "Store calls that timed out or failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: memoauth.MetricAuthenticateLatency, Name: "memoauth_authenticate_latency_seconds", Help: "Bearer token authentication latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "memoauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// snapshot bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundLabels are the le attribute values of each bucket, +Inf
// included, in the Prometheus text form.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// NormalizeBuckets pads or truncates raw snapshot buckets to eight entries.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
