/*
 * Copyright 2024 Relay authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package opentelemetry instruments service config parsing with OpenTelemetry
// metrics and traces.
package opentelemetry

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/relayrpc/relay-go/relaylog"
)

var logger = relaylog.Component("otel")

// Options are the options for OpenTelemetry instrumentation.
type Options struct {
	// MetricsOptions are the metrics options.
	MetricsOptions MetricsOptions
	// TraceOptions are the tracing options.
	TraceOptions TraceOptions
}

// MetricsOptions are the metrics options for OpenTelemetry instrumentation.
type MetricsOptions struct {
	// MeterProvider is the MeterProvider instance to record metrics on. To
	// enable metrics collection, set a meter provider. If unset, no metrics
	// will be recorded.
	MeterProvider metric.MeterProvider
	// Metrics are the metrics to instrument. Will instrument only the
	// metrics turned on in this set. If unset, the default metrics are
	// recorded.
	Metrics Metrics
}

// TraceOptions are the tracing options for OpenTelemetry instrumentation.
type TraceOptions struct {
	// TracerProvider is the TracerProvider instance to start spans on. To
	// enable tracing, set a tracer provider. If unset, no spans will be
	// started.
	TracerProvider trace.TracerProvider
}

// Metrics is a set of metrics to record. Once created, Metrics is immutable,
// however Add and Remove can make copies with specific metrics added or
// removed, respectively.
type Metrics struct {
	// metrics are the set of metrics to initialize.
	metrics map[string]bool
}

// Add adds the metrics to the metrics set and returns a new copy with the
// additional metrics.
func (m *Metrics) Add(metrics ...string) *Metrics {
	newMetrics := make(map[string]bool)
	for metric := range m.metrics {
		newMetrics[metric] = true
	}
	for _, metric := range metrics {
		newMetrics[metric] = true
	}
	return &Metrics{metrics: newMetrics}
}

// Remove removes the metrics from the metrics set and returns a new copy with
// the metrics removed.
func (m *Metrics) Remove(metrics ...string) *Metrics {
	newMetrics := make(map[string]bool)
	for metric := range m.metrics {
		newMetrics[metric] = true
	}
	for _, metric := range metrics {
		delete(newMetrics, metric)
	}
	return &Metrics{metrics: newMetrics}
}

// EmptyMetrics is a metrics set containing no metrics.
var EmptyMetrics = &Metrics{}

// DefaultMetrics are the default metrics recorded by this package.
var DefaultMetrics = *EmptyMetrics.Add(
	"relay.serviceconfig.parse.started",
	"relay.serviceconfig.parse.duration",
	"relay.serviceconfig.parse.document_size",
	"relay.serviceconfig.parse.errors",
)

// DefaultLatencyBounds are the default bounds for latency histograms.
var DefaultLatencyBounds = []float64{0, 0.00001, 0.00005, 0.0001, 0.0003, 0.0006, 0.0008, 0.001, 0.002, 0.003, 0.004, 0.005, 0.006, 0.008, 0.01, 0.013, 0.016, 0.02, 0.025, 0.03, 0.04, 0.05, 0.065, 0.08, 0.1, 0.13, 0.16, 0.2, 0.25, 0.3, 0.4, 0.5, 0.65, 0.8, 1, 2, 5, 10, 20, 50, 100}

// DefaultSizeBounds are the default bounds for document size histograms.
var DefaultSizeBounds = []float64{0, 1024, 2048, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864, 268435456, 1073741824, 4294967296}
