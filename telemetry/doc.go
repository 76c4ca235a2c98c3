// Package telemetry holds the Prometheus collectors and OpenTelemetry
// tracing setup for the chat simulator.
package telemetry
