// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter the daemon records, on its own registry
// so tests can run side by side.
type Metrics struct {
	registry *prometheus.Registry

	WebhookCallbacks *prometheus.CounterVec
	Messages         *prometheus.CounterVec
	ProviderSends    *prometheus.CounterVec
	Errors           *prometheus.CounterVec
}

// New creates and registers the daemon metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WebhookCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_webhook_callbacks_total",
			Help: "Provider status callbacks received, by reported status.",
		}, []string{"status"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_messages_total",
			Help: "Messages appended, by direction and type.",
		}, []string{"direction", "type"}),
		ProviderSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_provider_sends_total",
			Help: "Outbound provider dispatches, by outcome.",
		}, []string{"outcome"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_errors_total",
			Help: "Errors surfaced to clients, by component.",
		}, []string{"component"}),
	}
	m.registry.MustRegister(
		m.WebhookCallbacks, m.Messages, m.ProviderSends, m.Errors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMessage counts one appended message.
func (m *Metrics) RecordMessage(outgoing bool, msgType string) {
	direction := "in"
	if outgoing {
		direction = "out"
	}
	m.Messages.WithLabelValues(direction, msgType).Inc()
}
