package internaldefs

import (
	"strconv"
	"strings"

	"github.com/phonetica/phonauth"
)

// CounterDef names one phonauth counter.
type CounterDef struct {
	ID   phonauth.MetricID
	Name string
	Help string
}

// HistogramDef names one phonauth latency histogram.
type HistogramDef struct {
	ID   phonauth.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(phonauth.HistogramBounds) + 1

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: phonauth.MetricSignupSuccess, Name: "phonauth_signup_success_total", Help: "Accounts created through signup."},
	{ID: phonauth.MetricSignupDuplicate, Name: "phonauth_signup_duplicate_total", Help: "Signups rejected because the email is registered."},
	{ID: phonauth.MetricLoginSuccess, Name: "phonauth_login_success_total", Help: "Successful password logins."},
	{ID: phonauth.MetricLoginFailure, Name: "phonauth_login_failure_total", Help: "Failed password logins."},
	{ID: phonauth.MetricFederatedLoginSuccess, Name: "phonauth_google_login_success_total", Help: "Successful Google logins."},
	{ID: phonauth.MetricFederatedLoginRejected, Name: "phonauth_google_login_rejected_total", Help: "Google logins rejected for an unverified email or a refused code."},
	{ID: phonauth.MetricFederatedUserCreated, Name: "phonauth_google_user_created_total", Help: "Accounts created by a first Google login."},
	{ID: phonauth.MetricRefreshSuccess, Name: "phonauth_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: phonauth.MetricRefreshFailure, Name: "phonauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: phonauth.MetricLogout, Name: "phonauth_logout_total", Help: "Sessions ended by logout."},
	{ID: phonauth.MetricLogoutMissingSession, Name: "phonauth_logout_missing_session_total", Help: "Logouts without a session for the device."},
	{ID: phonauth.MetricPasswordChangeSuccess, Name: "phonauth_password_change_success_total", Help: "Successful password changes."},
	{ID: phonauth.MetricPasswordChangeInvalidOld, Name: "phonauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: phonauth.MetricPasswordRehashed, Name: "phonauth_password_rehashed_total", Help: "Hashes upgraded to the current parameters at login."},
	{ID: phonauth.MetricSessionUpserted, Name: "phonauth_session_upserted_total", Help: "Refresh sessions written."},
	{ID: phonauth.MetricProfileUpdated, Name: "phonauth_profile_updated_total", Help: "Profile updates."},
	{ID: phonauth.MetricTokenGranted, Name: "phonauth_token_granted_total", Help: "Access tokens issued by the password grant."},
	{ID: phonauth.MetricActivityTouched, Name: "phonauth_activity_touched_total", Help: "last_active updates."},
	{ID: phonauth.MetricAuthenticateFailure, Name: "phonauth_authenticate_failure_total", Help: "Rejected bearer tokens."},
	{ID: phonauth.MetricRateLimitHit, Name: "phonauth_rate_limit_hit_total", Help: "Requests rejected by the rate limiter."},
	{ID: phonauth.MetricWelcomeQueued, Name: "phonauth_welcome_queued_total", Help: "Welcome mails queued for delivery."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: phonauth.MetricAuthenticateLatency, Name: "phonauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// DroppedDefs name the dispatcher drop counters, which are not MetricIDs.
var (
	AuditDropped   = CounterDef{Name: "phonauth_audit_dropped_total", Help: "Audit events dropped because the dispatcher was full."}
	WelcomeDropped = CounterDef{Name: "phonauth_welcome_dropped_total", Help: "Welcome mails dropped because the dispatcher was full."}
)

// HistogramBounds are the Prometheus le labels, ending with +Inf.
var HistogramBounds = bucketLabels()

// HistogramBoundSuffix are the le labels made safe for instrument names.
var HistogramBoundSuffix = bucketSuffixes()

func bucketLabels() []string {
	out := make([]string, 0, BucketCount)
	for _, d := range phonauth.HistogramBounds {
		out = append(out, strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
	}
	return append(out, "+Inf")
}

func bucketSuffixes() []string {
	labels := bucketLabels()
	out := make([]string, len(labels))
	for i, l := range labels {
		if l == "+Inf" {
			out[i] = "inf"
			continue
		}
		out[i] = strings.ReplaceAll(l, ".", "_")
	}
	return out
}

// NormalizeBuckets copies raw into a fixed-size bucket array.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
