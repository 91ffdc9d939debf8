// Package telemetry provides thin accessors for the process-wide OTel tracer and meter
// providers, so call sites can grab a named tracer/meter the same way regardless of which
// provider (SDK or no-op) is installed at startup.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer scoped to the given instrumentation name, typically a fully
// qualified package path.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns a meter scoped to the given instrumentation name.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
