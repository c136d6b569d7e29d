// Package metrics exposes Prometheus collectors for the event bus, the
// command handlers and the background generator.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "simguard"

// Metrics implements realtime.Observer, commands.Recorder and
// generator.Recorder on top of Prometheus collectors.
type Metrics struct {
	subscribers      prometheus.Gauge
	events           *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	commands         *prometheus.CounterVec
	ticks            *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg, reusing any that are
// already registered under the same name. Other registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		subscribers: mustRegister(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "subscribers",
			Help:      "Number of live event subscribers.",
		})),
		events: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_total",
			Help:      "Events broadcast to subscribers, by type.",
		}, []string{"type"})),
		deliveryFailures: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "delivery_failures_total",
			Help:      "Subscribers dropped after a failed delivery, by reason.",
		}, []string{"reason"})),
		commands: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command and result.",
		}, []string{"command", "result"})),
		ticks: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "ticks_total",
			Help:      "Background generator ticks, by branch.",
		}, []string{"branch"})),
	}
	return m
}

func mustRegister[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Subscribers sets the live subscriber gauge.
func (m *Metrics) Subscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Published counts one broadcast event.
func (m *Metrics) Published(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// DeliveryFailed counts one dropped subscriber.
func (m *Metrics) DeliveryFailed(reason string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(reason).Inc()
}

// Command counts one command outcome.
func (m *Metrics) Command(name, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, result).Inc()
}

// Tick counts one generator tick.
func (m *Metrics) Tick(branch string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(branch).Inc()
}
