package metrics

import (
	"strconv"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/prometheus/client_golang/prometheus"
)

// TicketMetrics implements ports.TicketMetrics with Prometheus counters.
type TicketMetrics struct {
	acquisitions *prometheus.CounterVec
	cacheEvents  *prometheus.CounterVec
}

// NewTicketMetrics creates the ticket counters and registers them with reg.
func NewTicketMetrics(reg prometheus.Registerer) *TicketMetrics {
	m := &TicketMetrics{
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_acquisitions_total",
				Help: "The total number of ticket acquisitions by source and success",
			},
			[]string{"source", "ok"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_cache_events_total",
				Help: "The total number of ticket cache reloads and commits by event",
			},
			[]string{"event"},
		),
	}
	reg.MustRegister(m.acquisitions, m.cacheEvents)
	return m
}

func (m *TicketMetrics) ObserveAcquisition(source ticket.Source, ok bool) {
	m.acquisitions.WithLabelValues(string(source), strconv.FormatBool(ok)).Inc()
}

func (m *TicketMetrics) ObserveCacheEvent(event string) {
	m.cacheEvents.WithLabelValues(event).Inc()
}
