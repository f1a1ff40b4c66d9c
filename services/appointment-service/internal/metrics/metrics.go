package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for the appointment flows. A nil *Metrics is a no-op.
type Metrics struct {
	bookingsTotal     *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	agendaQueries     *prometheus.CounterVec
	outboxPublished   *prometheus.CounterVec
	repositoryLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showings",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking form submissions by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showings",
			Subsystem: "appointments",
			Name:      "status_transitions_total",
			Help:      "Status change requests by from/to status and result",
		}, []string{"from", "to", "result"}),
		agendaQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showings",
			Subsystem: "agenda",
			Name:      "queries_total",
			Help:      "Agenda view requests by tab",
		}, []string{"tab"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showings",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events delivered to Kafka",
		}, []string{"event_type"}),
		repositoryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "showings",
			Subsystem: "appointments",
			Name:      "operation_seconds",
			Help:      "Latency of appointment operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.agendaQueries, m.outboxPublished, m.repositoryLatency)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(from, to string, err error) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, result(err)).Inc()
}

func (m *Metrics) ObserveAgenda(tab string) {
	if m == nil {
		return
	}
	m.agendaQueries.WithLabelValues(tab).Inc()
}

func (m *Metrics) ObservePublished(eventType string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(eventType).Inc()
}

// ObserveOperation records the time since start; use as `defer m.ObserveOperation("get", time.Now(), &err)`.
func (m *Metrics) ObserveOperation(operation string, start time.Time, err *error) {
	if m == nil {
		return
	}
	var e error
	if err != nil {
		e = *err
	}
	m.repositoryLatency.WithLabelValues(operation, result(e)).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
