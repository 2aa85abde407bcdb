package internaldefs

import (
	"github.com/meddevice/medauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   medauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   medauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: medauth.MetricRegisterSuccess, Name: "medauth_register_success_total", Help: "Accounts registered."},
	{ID: medauth.MetricRegisterConflict, Name: "medauth_register_conflict_total", Help: "Registrations rejected for an existing email."},
	{ID: medauth.MetricLoginSuccess, Name: "medauth_login_success_total", Help: "Successful logins."},
	{ID: medauth.MetricLoginFailure, Name: "medauth_login_failure_total", Help: "Rejected credentials."},
	{ID: medauth.MetricTOTPRequired, Name: "medauth_totp_required_total", Help: "Logins that stopped for a missing two-factor code."},
	{ID: medauth.MetricTOTPSuccess, Name: "medauth_totp_success_total", Help: "Accepted two-factor codes."},
	{ID: medauth.MetricTOTPFailure, Name: "medauth_totp_failure_total", Help: "Rejected two-factor codes."},
	{ID: medauth.MetricRefreshSuccess, Name: "medauth_refresh_success_total", Help: "Token pairs issued from a refresh token."},
	{ID: medauth.MetricRefreshFailure, Name: "medauth_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: medauth.MetricTokenRejected, Name: "medauth_token_rejected_total", Help: "Rejected bearer, refresh and reset tokens."},
	{ID: medauth.MetricLogout, Name: "medauth_logout_total", Help: "Recorded logouts."},
	{ID: medauth.MetricAuthorizationAllowed, Name: "medauth_authorization_allowed_total", Help: "Allowed authorization checks."},
	{ID: medauth.MetricAuthorizationDenied, Name: "medauth_authorization_denied_total", Help: "Denied authorization checks."},
	{ID: medauth.MetricPasswordChangeSuccess, Name: "medauth_password_change_success_total", Help: "Successful password changes."},
	{ID: medauth.MetricPasswordChangeFailure, Name: "medauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: medauth.MetricPasswordResetRequest, Name: "medauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: medauth.MetricPasswordResetConfirmSuccess, Name: "medauth_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: medauth.MetricPasswordResetConfirmFailure, Name: "medauth_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: medauth.MetricAuditRecorded, Name: "medauth_audit_recorded_total", Help: "Audit entries accepted by the store."},
	{ID: medauth.MetricAuditWriteFailure, Name: "medauth_audit_write_failure_total", Help: "Audit entries the store rejected."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: medauth.MetricValidateLatency, Name: "medauth_validate_latency_seconds", Help: "Bearer token validation latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding
// +Inf. They match the engine's millisecond buckets.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// flatten buckets into separate instruments.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array.
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
