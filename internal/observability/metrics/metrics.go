package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the chat booking flow.
type BookingMetrics struct {
	turnsTotal         *prometheus.CounterVec
	bookingsTotal      *prometheus.CounterVec
	duplicatesTotal    prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns processed, by resulting state and validation code",
		}, []string{"state", "code"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Bookings recorded, by package kind and entry point",
		}, []string{"kind", "source"}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "bookings",
			Name:      "duplicates_total",
			Help:      "Bookings rejected by the device cooldown",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification channel outcomes",
		}, []string{"channel", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.bookingsTotal, m.duplicatesTotal, m.notificationsTotal, m.requestLatency)
	return m
}

func (m *BookingMetrics) ObserveTurn(state, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "none"
	}
	m.turnsTotal.WithLabelValues(state, code).Inc()
}

func (m *BookingMetrics) ObserveBooking(kind, source string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(kind, source).Inc()
}

func (m *BookingMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *BookingMetrics) ObserveNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}

func (m *BookingMetrics) ObserveRequest(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(method, status).Observe(seconds)
}
