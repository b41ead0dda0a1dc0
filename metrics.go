package authgate

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSignUpSuccess counts created accounts.
	MetricSignUpSuccess MetricID = iota
	// MetricSignUpDuplicate counts signups rejected for an existing email.
	MetricSignUpDuplicate
	// MetricSignInSuccess counts successful signins.
	MetricSignInSuccess
	// MetricSignInFailure counts credential failures.
	MetricSignInFailure
	// MetricSignInLocked counts signins refused by an active lockout.
	MetricSignInLocked
	// MetricSignInThrottled counts signins refused by the per-IP throttle.
	MetricSignInThrottled
	// MetricLockoutTriggered counts failure-threshold lock transitions.
	MetricLockoutTriggered
	// MetricPasswordExpired counts signins refused for an expired password.
	MetricPasswordExpired
	// MetricSignOut counts explicit logouts.
	MetricSignOut
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordReuseRejected counts changes rejected by history.
	MetricPasswordReuseRejected
	// MetricResetRequest counts issued reset codes.
	MetricResetRequest
	// MetricResetRateLimited counts throttled reset requests.
	MetricResetRateLimited
	// MetricResetSuccess counts completed password resets.
	MetricResetSuccess
	// MetricResetFailure counts reset attempts with a bad or expired code.
	MetricResetFailure
	// MetricTOTPSuccess counts verified second-factor codes.
	MetricTOTPSuccess
	// MetricTOTPFailure counts rejected second-factor codes.
	MetricTOTPFailure
	// MetricMailFailure counts notification deliveries that failed after
	// the state change committed.
	MetricMailFailure
	// MetricAdminDenied counts admin-surface calls refused by role check.
	MetricAdminDenied
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's atomic counters. All methods are safe for
// concurrent use; a nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}

// Name returns the stable exposition name for the counter. Used by the
// Prometheus exporter.
func (id MetricID) Name() string {
	switch id {
	case MetricSignUpSuccess:
		return "signup_success"
	case MetricSignUpDuplicate:
		return "signup_duplicate"
	case MetricSignInSuccess:
		return "signin_success"
	case MetricSignInFailure:
		return "signin_failure"
	case MetricSignInLocked:
		return "signin_locked"
	case MetricSignInThrottled:
		return "signin_throttled"
	case MetricLockoutTriggered:
		return "lockout_triggered"
	case MetricPasswordExpired:
		return "password_expired"
	case MetricSignOut:
		return "signout"
	case MetricPasswordChangeSuccess:
		return "password_change_success"
	case MetricPasswordReuseRejected:
		return "password_reuse_rejected"
	case MetricResetRequest:
		return "reset_request"
	case MetricResetRateLimited:
		return "reset_rate_limited"
	case MetricResetSuccess:
		return "reset_success"
	case MetricResetFailure:
		return "reset_failure"
	case MetricTOTPSuccess:
		return "totp_success"
	case MetricTOTPFailure:
		return "totp_failure"
	case MetricMailFailure:
		return "mail_failure"
	case MetricAdminDenied:
		return "admin_denied"
	default:
		return "unknown"
	}
}
