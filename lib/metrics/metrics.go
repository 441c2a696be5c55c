// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines Gossipwatch's Prometheus collectors.
//
// Collectors are registered on a caller-supplied registerer rather
// than the global default, so several observers (and tests) can exist
// in one process. A host exposes them by registering on its own
// registry or on prometheus.DefaultRegisterer. Registering twice on
// the same registerer shares the first set of collectors, so an
// observer can be rebuilt after a failed start or a Close.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons for EventsDropped.
const (
	ReasonNotReady      = "not_ready"
	ReasonQueueFull     = "queue_full"
	ReasonClosed        = "closed"
	ReasonShutdown      = "shutdown"
	ReasonMissingObject = "missing_object"
)

// Flush triggers for BatchesSent.
const (
	TriggerSize  = "size"
	TriggerTimer = "timer"
)

// Metrics holds every collector the pipeline updates.
type Metrics struct {
	EventsEnqueued *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	EventsSent     *prometheus.CounterVec
	BatchesSent    *prometheus.CounterVec
	BatchFailures  *prometheus.CounterVec
	BatchSize      prometheus.Histogram
	SendDuration   prometheus.Histogram
	QueueDepth     prometheus.Gauge
	OutputExports  *prometheus.CounterVec
	OutputDropped  *prometheus.CounterVec
}

// New creates the collectors and registers them on registerer. A
// collector already registered under the same name and labels is
// reused. Any other registration conflict is an error.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	r := &registrar{registerer: registerer}
	collectors := &Metrics{
		EventsEnqueued: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_events_enqueued_total",
				Help: "Events accepted onto the ingress queue",
			},
			[]string{"event_type"},
		),
		EventsDropped: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_events_dropped_total",
				Help: "Events discarded before delivery, by reason",
			},
			[]string{"event_type", "reason"},
		),
		EventsSent: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_events_sent_total",
				Help: "Events in batches the sink accepted",
			},
			[]string{"event_type"},
		),
		BatchesSent: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_batches_sent_total",
				Help: "Batches the sink accepted, by flush trigger",
			},
			[]string{"trigger"},
		),
		BatchFailures: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_batch_failures_total",
				Help: "Batches discarded after a failed send, by failure kind",
			},
			[]string{"kind"},
		),
		BatchSize: histogram(r,
			prometheus.HistogramOpts{
				Name:    "gossipwatch_batch_size",
				Help:    "Events per flushed batch",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		SendDuration: histogram(r,
			prometheus.HistogramOpts{
				Name:    "gossipwatch_send_duration_seconds",
				Help:    "Time spent in a single batch send",
				Buckets: prometheus.DefBuckets,
			},
		),
		QueueDepth: gauge(r,
			prometheus.GaugeOpts{
				Name: "gossipwatch_queue_depth",
				Help: "Events buffered in the ingress queue at the last flush",
			},
		),
		OutputExports: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_output_exports_total",
				Help: "Chunk exports per output, by result",
			},
			[]string{"output", "result"},
		),
		OutputDropped: counterVec(r,
			prometheus.CounterOpts{
				Name: "gossipwatch_output_dropped_total",
				Help: "Events an output discarded because a send exceeded its queue size",
			},
			[]string{"output"},
		),
	}
	if r.err != nil {
		return nil, r.err
	}
	return collectors, nil
}

// registrar registers collectors and keeps the first error.
type registrar struct {
	registerer prometheus.Registerer
	err        error
}

func counterVec(r *registrar, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return register(r, prometheus.NewCounterVec(opts, labels))
}

func histogram(r *registrar, opts prometheus.HistogramOpts) prometheus.Histogram {
	return register(r, prometheus.NewHistogram(opts))
}

func gauge(r *registrar, opts prometheus.GaugeOpts) prometheus.Gauge {
	return register(r, prometheus.NewGauge(opts))
}

// register returns collector, or the equal collector registered
// before it.
func register[C prometheus.Collector](r *registrar, collector C) C {
	err := r.registerer.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	if r.err == nil {
		r.err = fmt.Errorf("registering metrics: %w", err)
	}
	return collector
}

// NewUnregistered returns collectors registered on a private registry.
// For components constructed without a host registry.
func NewUnregistered() *Metrics {
	collectors, err := New(prometheus.NewRegistry())
	if err != nil {
		// A fresh registry only fails on an invalid collector definition.
		panic(err)
	}
	return collectors
}
