// Package telemetry provides structured logging (zerolog), Prometheus
// metrics, and OpenTelemetry tracing for fleetplan. Metrics and tracing
// are no-ops unless enabled in configuration, so engine call sites carry
// no conditional instrumentation logic.
package telemetry
