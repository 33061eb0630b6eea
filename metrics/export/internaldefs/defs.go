package internaldefs

import (
	"github.com/MrEthical07/sessionauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops.
const (
	AuditDroppedName = "sessionauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: sessionauth.MetricAuthenticationSuccess, Name: "sessionauth_authentication_success_total", Help: "Tokens resolved to a live session."},
	{ID: sessionauth.MetricAuthenticationFailure, Name: "sessionauth_authentication_failure_total", Help: "Resolutions rejected as not authenticated."},
	{ID: sessionauth.MetricRenewalSuccess, Name: "sessionauth_renewals_total", Help: "Sessions renewed during resolution."},
	{ID: sessionauth.MetricRenewalFailure, Name: "sessionauth_renewal_failures_total", Help: "Renewals that failed after successful validation."},
	{ID: sessionauth.MetricRevocation, Name: "sessionauth_revocations_total", Help: "Revoke-all-access operations."},
	{ID: sessionauth.MetricSessionsRevoked, Name: "sessionauth_sessions_revoked_total", Help: "Sessions removed by revocation."},
	{ID: sessionauth.MetricLoginSuccess, Name: "sessionauth_login_success_total", Help: "Successful logins."},
	{ID: sessionauth.MetricLoginFailure, Name: "sessionauth_login_failure_total", Help: "Failed logins."},
	{ID: sessionauth.MetricLogout, Name: "sessionauth_logout_total", Help: "Logouts."},
	{ID: sessionauth.MetricSignUp, Name: "sessionauth_signup_total", Help: "Accounts created by sign up."},
	{ID: sessionauth.MetricPasswordChange, Name: "sessionauth_password_change_total", Help: "Password changes."},
	{ID: sessionauth.MetricRoleChange, Name: "sessionauth_role_change_total", Help: "Role grants and revocations."},
	{ID: sessionauth.MetricAccountStatusChange, Name: "sessionauth_account_status_change_total", Help: "Account activations and inactivations."},
	{ID: sessionauth.MetricAuthorizationDenied, Name: "sessionauth_authorization_denied_total", Help: "Authorization checks that denied the action."},
	{ID: sessionauth.MetricPersistenceFailure, Name: "sessionauth_persistence_failure_total", Help: "Operations failed by the session or user store."},
}

var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricResolveLatency, Name: "sessionauth_resolve_latency_seconds", Help: "Identity resolution latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}


// NormalizeBuckets pads or truncates raw to eight buckets.
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
