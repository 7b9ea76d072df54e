package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef maps one in-process counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef maps one in-process histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// NotificationsDroppedName is the counter for events discarded by the
// notification dispatcher.
const NotificationsDroppedName = "gosession_notifications_dropped_total"

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Rejected logins."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Created accounts."},
	{ID: goSession.MetricRegisterDuplicate, Name: "gosession_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goSession.MetricValidateSuccess, Name: "gosession_validate_success_total", Help: "Tokens accepted by validate."},
	{ID: goSession.MetricValidateInvalid, Name: "gosession_validate_invalid_total", Help: "Tokens rejected as malformed or badly signed."},
	{ID: goSession.MetricValidateExpired, Name: "gosession_validate_expired_total", Help: "Tokens rejected as expired."},
	{ID: goSession.MetricValidateRevoked, Name: "gosession_validate_revoked_total", Help: "Tokens rejected as revoked."},
	{ID: goSession.MetricValidateStoreUnavailable, Name: "gosession_validate_store_unavailable_total", Help: "Tokens rejected because the session store was unreachable."},
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Created sessions."},
	{ID: goSession.MetricSessionInvalidated, Name: "gosession_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Single-session logouts."},
	{ID: goSession.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "All-device logouts."},
	{ID: goSession.MetricProfileCacheHit, Name: "gosession_profile_cache_hit_total", Help: "Profile reads served from cache."},
	{ID: goSession.MetricProfileCacheMiss, Name: "gosession_profile_cache_miss_total", Help: "Profile reads that missed the cache."},
	{ID: goSession.MetricProfileCacheError, Name: "gosession_profile_cache_error_total", Help: "Profile reads that fell back because the cache failed."},
	{ID: goSession.MetricProfileUpdated, Name: "gosession_profile_updated_total", Help: "Profile updates."},
	{ID: goSession.MetricPasswordChangeSuccess, Name: "gosession_password_change_success_total", Help: "Successful password changes."},
	{ID: goSession.MetricPasswordChangeInvalidOld, Name: "gosession_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: goSession.MetricPasswordChangeReuseRejected, Name: "gosession_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: goSession.MetricSweepRun, Name: "gosession_sweep_run_total", Help: "Sweep passes started."},
	{ID: goSession.MetricSweepFailure, Name: "gosession_sweep_failure_total", Help: "Sweep passes that failed."},
	{ID: goSession.MetricSweepRemoved, Name: "gosession_sweep_removed_total", Help: "Expired session records removed by sweeps."},
	{ID: goSession.MetricLoginThrottled, Name: "gosession_login_throttled_total", Help: "Logins refused by the failed-attempt throttle."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "Validate latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, without +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
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

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
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
