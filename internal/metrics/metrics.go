/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics holds the controller's Prometheus metrics. They are registered on the
// controller-runtime registry and served by the manager's metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

const namespace = "console"

var (
	// ReconcileRuns counts reconciliation passes
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Number of reconciliations",
		},
		[]string{"api_version", "kind"},
	)

	// ReconcileFailures counts failed reconciliation passes per object and error kind
	ReconcileFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_failures_total",
			Help:      "Number of reconciliation errors",
		},
		[]string{"api_version", "kind", "instance", "error"},
	)

	// ReconcileDuration observes reconciliation latency with the trace id as exemplar
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Reconcile duration",
			Buckets:   []float64{0.01, 0.1, 0.25, 0.5, 1, 5, 15, 60},
		},
		[]string{"api_version", "kind"},
	)

	// Objects is the number of managed objects per kind, backend and creation state
	Objects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Number of managed objects per kind, backend and created state",
		},
		[]string{"kind", "backend", "created"},
	)
)

func init() {
	metrics.Registry.MustRegister(ReconcileRuns)
	metrics.Registry.MustRegister(ReconcileFailures)
	metrics.Registry.MustRegister(ReconcileDuration)
	metrics.Registry.MustRegister(Objects)
}

// Measurer times one reconciliation
type Measurer struct {
	apiVersion string
	kind       string
	start      time.Time
}

// CountAndMeasure counts a run and starts timing it
func CountAndMeasure(apiVersion, kind string) *Measurer {
	ReconcileRuns.WithLabelValues(apiVersion, kind).Inc()
	return &Measurer{apiVersion: apiVersion, kind: kind, start: time.Now()}
}

// Done records the elapsed time. traceID may be empty.
func (m *Measurer) Done(traceID string) {
	ObserveReconcile(m.apiVersion, m.kind, time.Since(m.start), traceID)
}

// ObserveReconcile records a reconciliation duration
func ObserveReconcile(apiVersion, kind string, d time.Duration, traceID string) {
	observer := ReconcileDuration.WithLabelValues(apiVersion, kind)
	if eo, ok := observer.(prometheus.ExemplarObserver); ok && traceID != "" {
		eo.ObserveWithExemplar(d.Seconds(), prometheus.Labels{"trace_id": traceID})
		return
	}
	observer.Observe(d.Seconds())
}

// RecordFailure counts a failed reconciliation of instance
func RecordFailure(apiVersion, kind, instance string, err error) {
	ReconcileFailures.WithLabelValues(apiVersion, kind, instance, operrors.MetricLabel(err)).Inc()
}
