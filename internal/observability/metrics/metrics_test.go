package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveTurn("AWAITING_NAME", "")
	m.ObserveTurn("AWAITING_PHONE", "INVALID_PHONE")
	m.ObserveBooking("predefined", "chat")
	m.ObserveDuplicate()
	m.ObserveDuplicate()
	m.ObserveNotification("whatsapp", false)
	m.ObserveRequest("POST", "200", 0.02)

	if got := testutil.ToFloat64(m.duplicatesTotal); got != 2 {
		t.Fatalf("expected 2 duplicates, got %v", got)
	}
	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("AWAITING_NAME", "none")); got != 1 {
		t.Fatalf("expected empty code to be labelled none, got %v", got)
	}
	if got := testutil.ToFloat64(m.notificationsTotal.WithLabelValues("whatsapp", "failed")); got != 1 {
		t.Fatalf("expected one failed whatsapp delivery, got %v", got)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveTurn("GREETING", "")
	m.ObserveBooking("custom", "direct")
	m.ObserveDuplicate()
	m.ObserveNotification("email", true)
	m.ObserveRequest("GET", "200", 0.1)
}
