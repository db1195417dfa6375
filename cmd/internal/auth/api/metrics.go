package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts auth outcomes. All counters are optional; a nil *Metrics
// disables collection.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	CSRFRejections  prometheus.Counter
	ResetRequested  prometheus.Counter
	ResetRedeemed   prometheus.Counter
	MFAVerification *prometheus.CounterVec
	AccessDenied    prometheus.Counter
}

// NewMetrics builds and registers the auth counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waybill",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		CSRFRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waybill",
			Subsystem: "auth",
			Name:      "csrf_rejections_total",
			Help:      "Requests rejected by the CSRF check.",
		}),
		ResetRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waybill",
			Subsystem: "auth",
			Name:      "reset_requests_total",
			Help:      "Password reset requests received.",
		}),
		ResetRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waybill",
			Subsystem: "auth",
			Name:      "reset_tokens_redeemed_total",
			Help:      "Password reset tokens redeemed.",
		}),
		MFAVerification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waybill",
			Subsystem: "auth",
			Name:      "mfa_verifications_total",
			Help:      "MFA verification attempts by outcome.",
		}, []string{"outcome"}),
		AccessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waybill",
			Subsystem: "auth",
			Name:      "access_denied_total",
			Help:      "Requests denied by the role guard.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.LoginAttempts,
			m.CSRFRejections,
			m.ResetRequested,
			m.ResetRedeemed,
			m.MFAVerification,
			m.AccessDenied,
		)
	}
	return m
}

func (m *Metrics) loginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) csrfRejected() {
	if m == nil {
		return
	}
	m.CSRFRejections.Inc()
}

func (m *Metrics) resetRequested() {
	if m == nil {
		return
	}
	m.ResetRequested.Inc()
}

func (m *Metrics) resetRedeemed() {
	if m == nil {
		return
	}
	m.ResetRedeemed.Inc()
}

func (m *Metrics) mfaOutcome(outcome string) {
	if m == nil {
		return
	}
	m.MFAVerification.WithLabelValues(outcome).Inc()
}

func (m *Metrics) accessDenied() {
	if m == nil {
		return
	}
	m.AccessDenied.Inc()
}
