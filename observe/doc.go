// Package observe provides observability primitives for the image cache.
//
// It is a pure instrumentation library: a JSON structured Logger, cache
// Metrics and a Tracer on top of OpenTelemetry, plus exporter setup.
// Consumers pass an Instrumentation (or its parts) to cache coordinators.
package observe
