// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors for sensorlink.
//
// A nil *Metrics is valid and records nothing, so components take an
// optional *Metrics and never check it before calling.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensorlink"

// Result labels for transaction calls and binding attempts.
const (
	ResultOK        = "ok"
	ResultTransport = "transport_error"
	ResultProtocol  = "protocol_error"
	ResultRemote    = "remote_error"
	ResultFailed    = "failed"
)

// Metrics groups every collector sensorlink exports.
type Metrics struct {
	transactCalls    *prometheus.CounterVec
	transactDuration *prometheus.HistogramVec
	handled          *prometheus.CounterVec
	handleDuration   *prometheus.HistogramVec
	bindings         *prometheus.CounterVec
	deaths           prometheus.Counter
	state            prometheus.Gauge
	statusEvents     *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer.
// Registering twice with the same registerer fails.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transact",
			Name:      "calls_total",
			Help:      "Transactions sent to a producer, by code and result.",
		}, []string{"code", "result"}),

		transactDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transact",
			Name:      "call_duration_seconds",
			Help:      "Round-trip time of transactions sent to a producer.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"code"}),

		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transact",
			Name:      "handled_total",
			Help:      "Transactions served by a producer, by code and result.",
		}, []string{"code", "result"}),

		handleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transact",
			Name:      "handle_duration_seconds",
			Help:      "Time a producer spent serving a transaction.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"code"}),

		bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connector",
			Name:      "bindings_total",
			Help:      "Bind and rebind attempts, by result.",
		}, []string{"result"}),

		deaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connector",
			Name:      "deaths_total",
			Help:      "Producer deaths observed by connectors.",
		}),

		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connector",
			Name:      "state",
			Help:      "Current connector binding state ordinal.",
		}),

		statusEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connector",
			Name:      "status_events_total",
			Help:      "Device status events received, by status.",
		}, []string{"status"}),
	}

	collectors := []prometheus.Collector{
		m.transactCalls,
		m.transactDuration,
		m.handled,
		m.handleDuration,
		m.bindings,
		m.deaths,
		m.state,
		m.statusEvents,
	}
	var errs []error
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveCall records one transaction with its result label.
func (m *Metrics) ObserveCall(code, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transactCalls.WithLabelValues(code, result).Inc()
	m.transactDuration.WithLabelValues(code).Observe(duration.Seconds())
}

// ObserveHandled records one transaction served by this process.
func (m *Metrics) ObserveHandled(code, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(code, result).Inc()
	m.handleDuration.WithLabelValues(code).Observe(duration.Seconds())
}

// RecordBinding counts a bind attempt.
func (m *Metrics) RecordBinding(result string) {
	if m == nil {
		return
	}
	m.bindings.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDeath() {
	if m == nil {
		return
	}
	m.deaths.Inc()
}

// SetState publishes the connector state ordinal.
func (m *Metrics) SetState(ordinal int) {
	if m == nil {
		return
	}
	m.state.Set(float64(ordinal))
}

func (m *Metrics) RecordStatusEvent(status string) {
	if m == nil {
		return
	}
	m.statusEvents.WithLabelValues(status).Inc()
}
