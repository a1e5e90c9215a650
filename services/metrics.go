package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"patro-map/mapview"
)

// Metrics - Prometheus collectors for the map service. A nil *Metrics is a no-op.
type Metrics struct {
	registry        *prometheus.Registry
	robotUpdates    *prometheus.CounterVec
	droppedMessages *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	redraws         *prometheus.CounterVec
	webClients      prometheus.Gauge
}

// NewMetrics - fresh registry with all collectors registered
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	robotUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patro",
		Name:      "robot_updates_total",
		Help:      "Robot status messages applied to the map, by result",
	}, []string{"result"})

	droppedMessages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patro",
		Name:      "robot_messages_dropped_total",
		Help:      "Robot status messages dropped before reaching the map",
	}, []string{"reason"})

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patro",
		Name:      "dispatch_requests_total",
		Help:      "Planner plan/stop calls, by outcome",
	}, []string{"op", "outcome"})

	redraws := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patro",
		Name:      "entity_draws_total",
		Help:      "Entity draws on the shared canvas, by kind",
	}, []string{"kind"})

	webClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "patro",
		Name:      "web_clients",
		Help:      "Connected web clients",
	})

	registry.MustRegister(robotUpdates, droppedMessages, dispatches, redraws, webClients)

	return &Metrics{
		registry:        registry,
		robotUpdates:    robotUpdates,
		droppedMessages: droppedMessages,
		dispatches:      dispatches,
		redraws:         redraws,
		webClients:      webClients,
	}
}

// RobotUpdate - count one applied update ("added", "moved", "queued", "error")
func (m *Metrics) RobotUpdate(result string) {
	if m == nil {
		return
	}
	m.robotUpdates.WithLabelValues(result).Inc()
}

// Dropped - count one dropped message
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.droppedMessages.WithLabelValues(reason).Inc()
}

// Dispatch - count one planner call
func (m *Metrics) Dispatch(op, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(op, outcome).Inc()
}

// Redraw - count one entity draw; shaped to fit mapview.Options.OnRedraw
func (m *Metrics) Redraw(kind mapview.EntityKind) {
	if m == nil {
		return
	}
	m.redraws.WithLabelValues(string(kind)).Inc()
}

// SetWebClients - current web client count
func (m *Metrics) SetWebClients(n int) {
	if m == nil {
		return
	}
	m.webClients.Set(float64(n))
}

// Handler - /metrics handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
