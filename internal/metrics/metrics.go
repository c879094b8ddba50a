package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay agrupa las métricas del relay. Un *Relay nil es válido y no registra nada.
type Relay struct {
	SessionsConnected   prometheus.Gauge
	NotificationsTotal  *prometheus.CounterVec
	DeliveriesDropped   *prometheus.CounterVec
	ValidationErrors    *prometheus.CounterVec
	ScanTicks           *prometheus.CounterVec
	ScanDuration        prometheus.Histogram
	RemindersSuppressed prometheus.Counter
}

// New registra las métricas en reg.
func New(reg prometheus.Registerer) *Relay {
	factory := promauto.With(reg)
	return &Relay{
		SessionsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_sessions_connected",
			Help: "Number of live caregiver and patient sessions",
		}),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_notifications_published_total",
				Help: "Total number of notifications published to the fan-out",
			},
			[]string{"kind", "source"},
		),
		DeliveriesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_deliveries_dropped_total",
				Help: "Total number of per-session deliveries dropped",
			},
			[]string{"reason"},
		),
		ValidationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_validation_errors_total",
				Help: "Total number of raw events rejected by the normalizer",
			},
			[]string{"event"},
		),
		ScanTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_scan_ticks_total",
				Help: "Total number of missed-reminder scan ticks",
			},
			[]string{"result"},
		),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_scan_duration_seconds",
			Help:    "Duration of missed-reminder scan ticks in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		RemindersSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_reminders_suppressed_total",
			Help: "Total number of missed-reminder alerts suppressed by the dedup policy",
		}),
	}
}

func (m *Relay) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsConnected.Inc()
}

func (m *Relay) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsConnected.Dec()
}

func (m *Relay) Published(kind, source string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, source).Inc()
}

func (m *Relay) Dropped(reason string) {
	if m == nil {
		return
	}
	m.DeliveriesDropped.WithLabelValues(reason).Inc()
}

func (m *Relay) Rejected(event string) {
	if m == nil {
		return
	}
	m.ValidationErrors.WithLabelValues(event).Inc()
}

func (m *Relay) ScanTick(result string, seconds float64) {
	if m == nil {
		return
	}
	m.ScanTicks.WithLabelValues(result).Inc()
	m.ScanDuration.Observe(seconds)
}

func (m *Relay) Suppressed() {
	if m == nil {
		return
	}
	m.RemindersSuppressed.Inc()
}
