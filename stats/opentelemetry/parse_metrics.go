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

package opentelemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/relayrpc/relay-go/serviceconfig"
)

// Recorder wraps service config parsing with metric and span recording. A
// Recorder built from zero-valued options records nothing and adds no
// overhead beyond a few nil checks.
type Recorder struct {
	o Options

	parseMetrics parseMetrics
	tracer       trace.Tracer
}

type parseMetrics struct {
	started      metric.Int64Counter
	duration     metric.Float64Histogram
	documentSize metric.Int64Histogram
	errors       metric.Int64Counter
}

// NewRecorder returns a Recorder configured with the given options.
func NewRecorder(o Options) *Recorder {
	r := &Recorder{o: o}
	r.initializeMetrics()
	if tp := o.TraceOptions.TracerProvider; tp != nil {
		r.tracer = tp.Tracer("relay-go")
	}
	return r
}

func (r *Recorder) initializeMetrics() {
	// Will set no metrics to record, logically making this recorder a no-op.
	if r.o.MetricsOptions.MeterProvider == nil {
		return
	}

	meter := r.o.MetricsOptions.MeterProvider.Meter("relay-go")
	if meter == nil {
		return
	}

	setOfMetrics := r.o.MetricsOptions.Metrics.metrics
	if setOfMetrics == nil {
		setOfMetrics = DefaultMetrics.metrics
	}

	pm := parseMetrics{}

	if _, ok := setOfMetrics["relay.serviceconfig.parse.started"]; ok {
		ps, err := meter.Int64Counter("relay.serviceconfig.parse.started", metric.WithUnit("parse"), metric.WithDescription("The total number of service config parses started, including those that failed validation."))
		if err != nil {
			logger.Errorf("failed to register metric \"relay.serviceconfig.parse.started\", will not record")
		} else {
			pm.started = ps
		}
	}

	if _, ok := setOfMetrics["relay.serviceconfig.parse.duration"]; ok {
		pd, err := meter.Float64Histogram("relay.serviceconfig.parse.duration", metric.WithUnit("s"), metric.WithDescription("End-to-end time taken to parse and validate one service config document."), metric.WithExplicitBucketBoundaries(DefaultLatencyBounds...))
		if err != nil {
			logger.Errorf("failed to register metric \"relay.serviceconfig.parse.duration\", will not record")
		} else {
			pm.duration = pd
		}
	}

	if _, ok := setOfMetrics["relay.serviceconfig.parse.document_size"]; ok {
		ds, err := meter.Int64Histogram("relay.serviceconfig.parse.document_size", metric.WithUnit("By"), metric.WithDescription("Size in bytes of the service config documents handed to the parser."), metric.WithExplicitBucketBoundaries(DefaultSizeBounds...))
		if err != nil {
			logger.Errorf("failed to register metric \"relay.serviceconfig.parse.document_size\", will not record")
		} else {
			pm.documentSize = ds
		}
	}

	if _, ok := setOfMetrics["relay.serviceconfig.parse.errors"]; ok {
		pe, err := meter.Int64Counter("relay.serviceconfig.parse.errors", metric.WithUnit("error"), metric.WithDescription("The total number of service config parses that failed validation."))
		if err != nil {
			logger.Errorf("failed to register metric \"relay.serviceconfig.parse.errors\", will not record")
		} else {
			pm.errors = pe
		}
	}

	r.parseMetrics = pm
}

// Parse parses js against the parsers registered in reg, exactly like
// serviceconfig.Parse, recording metrics and a span around the operation.
func (r *Recorder) Parse(ctx context.Context, reg *serviceconfig.Registry, js string, opts serviceconfig.ParseOptions) (*serviceconfig.ServiceConfig, error) {
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "relay.serviceconfig.parse")
		span.SetAttributes(attribute.Int("relay.serviceconfig.document_size", len(js)))
		defer span.End()
	}

	if r.parseMetrics.started != nil {
		r.parseMetrics.started.Add(ctx, 1)
	}
	if r.parseMetrics.documentSize != nil {
		r.parseMetrics.documentSize.Record(ctx, int64(len(js)))
	}

	startTime := time.Now()
	sc, err := serviceconfig.Parse(reg, js, opts)
	latency := float64(time.Since(startTime)) / float64(time.Second)

	st := "OK"
	if err != nil {
		st = "error"
		if r.parseMetrics.errors != nil {
			r.parseMetrics.errors.Add(ctx, 1)
		}
	}
	if r.parseMetrics.duration != nil {
		r.parseMetrics.duration.Record(ctx, latency, metric.WithAttributes(attribute.String("relay.status", st)))
	}
	if span != nil {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
		} else {
			span.SetStatus(otelcodes.Ok, "")
		}
	}
	return sc, err
}
